package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larrybwosi/multitenancy-sub007/internal/config"
	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/store/memory"
)

func assertSaleIdentity(t *testing.T, sale domain.Sale) {
	t.Helper()
	expected := sale.TotalAmount.Sub(sale.DiscountAmount).Add(sale.TaxAmount)
	if !sale.FinalAmount.Equal(expected) {
		t.Fatalf("final %s != total %s - discount %s + tax %s", sale.FinalAmount, sale.TotalAmount, sale.DiscountAmount, sale.TaxAmount)
	}

	lines := decimal.Zero
	for _, item := range sale.Items {
		lines = lines.Add(item.TotalAmount)
	}
	itemLevel := sale.DiscountAmount.Sub(sale.SaleDiscountAmount)
	if !lines.Equal(sale.TotalAmount.Sub(itemLevel).Add(sale.TaxAmount)) {
		t.Fatalf("line totals %s do not match sale totals", lines)
	}
}

func batchQuantities(t *testing.T, repo *memory.Store, productID string) map[string]int {
	t.Helper()
	batches, err := repo.ListBatches(context.Background(), store.BatchFilter{
		OrganizationID: memory.DemoOrganizationID, ProductID: productID, IncludeDepleted: true,
	})
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	out := make(map[string]int, len(batches))
	for _, b := range batches {
		out[b.ID] = b.CurrentQuantity
	}
	return out
}

func TestCreateSaleFIFOAcrossBatches(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	ctx := adminCtx()

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{SKU: "P", Name: "Product P", BasePrice: dec("9.00")})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	a, err := svc.ReceiveBatch(ctx, domain.BatchReceiveRequest{
		ProductID: product.ID, LocationID: memory.DemoMainLocationID, Quantity: 10, PurchasePrice: dec("5.00"),
		ReceivedAt: ptr(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("receive A failed: %v", err)
	}
	b, err := svc.ReceiveBatch(ctx, domain.BatchReceiveRequest{
		ProductID: product.ID, LocationID: memory.DemoMainLocationID, Quantity: 10, PurchasePrice: dec("6.00"),
		ReceivedAt: ptr(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("receive B failed: %v", err)
	}

	sale, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		LocationID:    ptr(memory.DemoMainLocationID),
		PaymentMethod: "cash",
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 15}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	if len(sale.Items) != 2 {
		t.Fatalf("expected 2 sale items, got %d", len(sale.Items))
	}
	first, second := sale.Items[0], sale.Items[1]
	if first.StockBatchID != a.ID || first.Quantity != 10 || !first.UnitCost.Equal(dec("5.00")) {
		t.Fatalf("unexpected first item %+v", first)
	}
	if second.StockBatchID != b.ID || second.Quantity != 5 || !second.UnitCost.Equal(dec("6.00")) {
		t.Fatalf("unexpected second item %+v", second)
	}

	remaining := batchQuantities(t, repo, product.ID)
	if remaining[a.ID] != 0 || remaining[b.ID] != 5 {
		t.Fatalf("unexpected remaining quantities %+v", remaining)
	}
	if !sale.TotalAmount.Equal(dec("135")) || sale.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("unexpected sale totals %+v", sale)
	}
	if sale.Member == nil || sale.Member.ID != memory.DemoCashierID {
		t.Fatalf("expected the selling member to be attached")
	}
	assertSaleIdentity(t, sale)
}

func TestCreateSaleTotalsAndLoyalty(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := cashierCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		CustomerID:     ptr("cust-wanjiku"),
		LocationID:     ptr(memory.DemoMainLocationID),
		PaymentMethod:  domain.PaymentMobileMoney,
		DiscountAmount: ptr(dec("10.00")),
		Items: []domain.SaleItemRequest{{
			ProductID:      "prod-rice",
			Quantity:       2,
			DiscountAmount: ptr(dec("40.00")),
			TaxRate:        ptr(dec("0.16")),
		}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	// 2 x 320 = 640; taxable 600; tax 96; pre-sale 696; less 10
	checks := map[string][2]decimal.Decimal{
		"total":         {sale.TotalAmount, dec("640")},
		"discount":      {sale.DiscountAmount, dec("50")},
		"sale discount": {sale.SaleDiscountAmount, dec("10")},
		"tax":           {sale.TaxAmount, dec("96")},
		"final":         {sale.FinalAmount, dec("686")},
	}
	for name, pair := range checks {
		if !pair[0].Equal(pair[1]) {
			t.Fatalf("%s: got %s, want %s", name, pair[0], pair[1])
		}
	}
	assertSaleIdentity(t, sale)

	if sale.Customer == nil || sale.Customer.LoyaltyPoints != 686 {
		t.Fatalf("expected 686 loyalty points on the customer, got %+v", sale.Customer)
	}
	entries, err := svc.ListLoyaltyTransactions(ctx, "cust-wanjiku")
	if err != nil || len(entries) != 1 || entries[0].SaleID != sale.ID || entries[0].Points != 686 {
		t.Fatalf("expected one loyalty entry for the sale, got %+v err=%v", entries, err)
	}
}

func TestCreateSaleIsAllOrNothing(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		LocationID:    ptr(memory.DemoMainLocationID),
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-rice", Quantity: 5},
			{ProductID: "prod-milk", Quantity: 100},
		},
	})
	var insufficient *store.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if insufficient.SKU != "MILK-500ML" || insufficient.Required != 100 || insufficient.Available != 24 {
		t.Fatalf("unexpected error detail %+v", insufficient)
	}

	if got := batchQuantities(t, repo, "prod-rice")["batch-seed-rice"]; got != 40 {
		t.Fatalf("expected rice to be untouched, got %d", got)
	}
	resp, _ := svc.ListSales(cashierCtx(), domain.SaleListQuery{})
	if resp.TotalCount != 0 {
		t.Fatalf("expected no persisted sale, got %d", resp.TotalCount)
	}
}

func TestCreateSaleOversizedDiscount(t *testing.T) {
	req := domain.SaleCreateRequest{
		CustomerID:     ptr("cust-wanjiku"),
		LocationID:     ptr(memory.DemoMainLocationID),
		PaymentMethod:  domain.PaymentCash,
		DiscountAmount: ptr(dec("500.00")),
		Items:          []domain.SaleItemRequest{{ProductID: "prod-rice", Quantity: 1}},
	}

	t.Run("clamp", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{NegativeTotalPolicy: config.NegativeTotalClamp})
		sale, err := svc.CreateSale(cashierCtx(), req)
		if err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
		if !sale.FinalAmount.IsZero() || !sale.SaleDiscountAmount.Equal(dec("320")) {
			t.Fatalf("expected final 0 with 320 applied, got final=%s applied=%s", sale.FinalAmount, sale.SaleDiscountAmount)
		}
		assertSaleIdentity(t, sale)

		entries, _ := svc.ListLoyaltyTransactions(cashierCtx(), "cust-wanjiku")
		if len(entries) != 0 {
			t.Fatalf("expected no loyalty entry for a zero sale")
		}
	})

	t.Run("reject", func(t *testing.T) {
		svc, repo, _ := newTestService(t, Options{NegativeTotalPolicy: config.NegativeTotalReject})
		_, err := svc.CreateSale(cashierCtx(), req)
		if !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if got := batchQuantities(t, repo, "prod-rice")["batch-seed-rice"]; got != 40 {
			t.Fatalf("expected rice to be untouched, got %d", got)
		}
	})
}

func TestCreateSaleOversizedItemDiscount(t *testing.T) {
	req := domain.SaleCreateRequest{
		LocationID:    ptr(memory.DemoMainLocationID),
		PaymentMethod: domain.PaymentCash,
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-rice", Quantity: 1, DiscountAmount: ptr(dec("500.00")), TaxRate: ptr(dec("0.16"))},
		},
	}

	t.Run("clamp", func(t *testing.T) {
		svc, repo, _ := newTestService(t, Options{NegativeTotalPolicy: config.NegativeTotalClamp})
		sale, err := svc.CreateSale(cashierCtx(), req)
		if err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
		if !sale.FinalAmount.IsZero() {
			t.Fatalf("expected final 0, got %s", sale.FinalAmount)
		}
		if !sale.DiscountAmount.Equal(dec("320")) || !sale.SaleDiscountAmount.IsZero() || !sale.TaxAmount.IsZero() {
			t.Fatalf("expected item discount capped at 320 with no tax, got discount=%s sale=%s tax=%s",
				sale.DiscountAmount, sale.SaleDiscountAmount, sale.TaxAmount)
		}
		assertSaleIdentity(t, sale)
		if got := batchQuantities(t, repo, "prod-rice")["batch-seed-rice"]; got != 39 {
			t.Fatalf("expected rice to be depleted by one, got %d", got)
		}
	})

	t.Run("reject", func(t *testing.T) {
		svc, repo, _ := newTestService(t, Options{NegativeTotalPolicy: config.NegativeTotalReject})
		_, err := svc.CreateSale(cashierCtx(), req)
		var validation *store.ValidationError
		if !errors.As(err, &validation) || validation.Fields["items[0].discountAmount"] == "" {
			t.Fatalf("expected validation error on items[0].discountAmount, got %v", err)
		}
		if got := batchQuantities(t, repo, "prod-rice")["batch-seed-rice"]; got != 40 {
			t.Fatalf("expected rice to be untouched, got %d", got)
		}
	})
}

func TestCreateSaleVariants(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := cashierCtx()

	_, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID:    ptr(memory.DemoWarehouseID),
		PaymentMethod: domain.PaymentCard,
		Items:         []domain.SaleItemRequest{{ProductID: "prod-tee", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected missing variant validation error, got %v", err)
	}

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID:    ptr(memory.DemoWarehouseID),
		PaymentMethod: domain.PaymentCard,
		Items:         []domain.SaleItemRequest{{ProductID: "prod-tee", VariantID: ptr("var-tee-xl"), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if sale.Items[0].SKU != "TEE-XL" || !sale.Items[0].UnitPrice.Equal(dec("950")) {
		t.Fatalf("expected variant pricing, got %+v", sale.Items[0])
	}

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		LocationID:    ptr(memory.DemoWarehouseID),
		PaymentMethod: domain.PaymentCard,
		Items:         []domain.SaleItemRequest{{ProductID: "prod-missing", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	_, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		PaymentMethod: "barter",
		Items:         []domain.SaleItemRequest{{ProductID: "prod-rice", Quantity: 0, TaxRate: ptr(dec("1.5"))}},
	})
	var validation *store.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"paymentMethod", "items[0].quantity", "items[0].taxRate"} {
		if _, ok := validation.Fields[field]; !ok {
			t.Fatalf("expected %s in %+v", field, validation.Fields)
		}
	}
}

func TestCreateSaleLocationFallbacks(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := cashierCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.SaleItemRequest{{ProductID: "prod-milk", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("sale at default location failed: %v", err)
	}
	if sale.LocationID != memory.DemoMainLocationID {
		t.Fatalf("expected default location, got %s", sale.LocationID)
	}

	if _, err := svc.CheckIn(ctx, domain.CheckInRequest{LocationID: memory.DemoWarehouseID}); err != nil {
		t.Fatalf("check in failed: %v", err)
	}
	sale, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		PaymentMethod: domain.PaymentCredit,
		Items:         []domain.SaleItemRequest{{ProductID: "prod-tee", VariantID: ptr("var-tee-m"), Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("sale at check-in location failed: %v", err)
	}
	if sale.LocationID != memory.DemoWarehouseID {
		t.Fatalf("expected check-in location, got %s", sale.LocationID)
	}
	if sale.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected credit sale to be pending, got %s", sale.PaymentStatus)
	}
}

func TestListSalesPagingAndRanges(t *testing.T) {
	svc, _, clock := newTestService(t, Options{})
	ctx := cashierCtx()

	for i := range 3 {
		clock.Set(time.Date(2024, 5, 15, 9, i, 0, 0, time.UTC))
		if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
			LocationID:    ptr(memory.DemoMainLocationID),
			PaymentMethod: domain.PaymentCash,
			Notes:         "counter sale",
			Items:         []domain.SaleItemRequest{{ProductID: "prod-milk", Quantity: 1}},
		}); err != nil {
			t.Fatalf("create sale %d failed: %v", i, err)
		}
	}

	page, err := svc.ListSales(ctx, domain.SaleListQuery{Page: 2, PageSize: 2, DateRange: "today"})
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if page.TotalCount != 3 || len(page.Sales) != 1 {
		t.Fatalf("expected 1 of 3 on page 2, got %d of %d", len(page.Sales), page.TotalCount)
	}
	if !page.Sales[0].CreatedAt.Equal(time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected oldest sale last, got %s", page.Sales[0].CreatedAt)
	}

	yesterday, err := svc.ListSales(ctx, domain.SaleListQuery{DateRange: "yesterday"})
	if err != nil || yesterday.TotalCount != 0 {
		t.Fatalf("expected nothing yesterday, got %d err=%v", yesterday.TotalCount, err)
	}

	searched, _ := svc.ListSales(ctx, domain.SaleListQuery{Search: "COUNTER", PaymentMethod: "cash"})
	if searched.TotalCount != 3 {
		t.Fatalf("expected search to match all sales, got %d", searched.TotalCount)
	}

	if _, err := svc.ListSales(ctx, domain.SaleListQuery{DateRange: "someday"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown range, got %v", err)
	}
}

func TestGetSaleIsTenantScoped(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	sale, err := svc.CreateSale(cashierCtx(), domain.SaleCreateRequest{
		LocationID:    ptr(memory.DemoMainLocationID),
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.SaleItemRequest{{ProductID: "prod-milk", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	other := WithActor(context.Background(), domain.Actor{Username: "x", Role: domain.RoleAdmin, OrganizationID: "org-other"})
	if _, err := svc.GetSale(other, sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found from another tenant, got %v", err)
	}
	got, err := svc.GetSale(cashierCtx(), sale.ID)
	if err != nil || got.SaleNumber != sale.SaleNumber {
		t.Fatalf("expected to load sale, got %+v err=%v", got, err)
	}
}
