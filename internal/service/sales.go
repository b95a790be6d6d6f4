package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/config"
	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/ledger"
	"github.com/larrybwosi/multitenancy-sub007/internal/pricing"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/xid"
)

const (
	defaultSalePageSize = 10
	maxSalePageSize     = 100
)

var taxRateCeiling = decimal.NewFromInt(1)

// CreateSale resolves every requested line, depletes stock FIFO, prices the
// resulting batch allocations and persists the sale with any loyalty award.
// All of it happens in one transaction.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}

	req.PaymentMethod = strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if err := validateSaleRequest(req); err != nil {
		return domain.Sale{}, err
	}

	now := s.now().UTC()
	sale := domain.Sale{
		ID:             xid.New("sale"),
		OrganizationID: actor.OrganizationID,
		SaleNumber:     xid.SaleNumber(now),
		MemberID:       actor.MemberID,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  paymentStatusFor(req.PaymentMethod),
		Notes:          strings.TrimSpace(req.Notes),
		CashDrawerID:   req.CashDrawerID,
		CreatedAt:      now,
	}

	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		locationID, err := s.resolveSaleLocation(ctx, tx, actor, req.LocationID)
		if err != nil {
			return err
		}
		sale.LocationID = locationID

		var customer *domain.Customer
		if id := valueOr(req.CustomerID, ""); id != "" {
			customer, err = tx.LockCustomer(ctx, actor.OrganizationID, id)
			if err != nil {
				return err
			}
			sale.CustomerID = &customer.ID
		}

		var totals pricing.Totals
		sale.Items = make([]domain.SaleItem, 0, len(req.Items))
		for i, item := range req.Items {
			product, variant, err := ledger.ResolveProduct(ctx, tx, actor.OrganizationID, strings.TrimSpace(item.ProductID), item.VariantID)
			if err != nil {
				return err
			}

			line := pricing.Line{
				Index:     i,
				ProductID: product.ID,
				SKU:       pricing.SKU(*product, variant),
				UnitPrice: pricing.UnitPrice(*product, variant, item.UnitPriceOverride),
				Quantity:  item.Quantity,
				Discount:  decimalOrZero(item.DiscountAmount),
				TaxRate:   decimalOrZero(item.TaxRate),
			}
			key := domain.StockKey{OrganizationID: actor.OrganizationID, ProductID: product.ID, LocationID: locationID}
			if variant != nil {
				line.VariantID = &variant.ID
				key.VariantID = variant.ID
			}
			if lineSubtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))); line.Discount.GreaterThan(lineSubtotal) {
				if s.negativeTotalPolicy == config.NegativeTotalReject {
					return store.InvalidField(fmt.Sprintf("items[%d].discountAmount", i), "exceeds the line subtotal")
				}
				s.logger.Warn("item discount exceeds line subtotal; line clamped to zero",
					zap.String("organization_id", actor.OrganizationID),
					zap.String("sale_id", sale.ID),
					zap.Int("line", i),
					zap.String("requested_discount", line.Discount.StringFixed(2)),
					zap.String("applied_discount", lineSubtotal.StringFixed(2)),
				)
				line.Discount = lineSubtotal
			}

			allocations, err := ledger.Deplete(ctx, tx, ledger.DepleteInput{
				Key:       key,
				SKU:       line.SKU,
				Quantity:  item.Quantity,
				Policy:    ledger.FIFO,
				Reference: sale.ID,
				MemberID:  actor.MemberID,
				At:        now,
			})
			if err != nil {
				return err
			}

			for _, saleItem := range pricing.BuildItems(line, allocations) {
				saleItem.ID = xid.New("sitem")
				saleItem.SaleID = sale.ID
				totals.Add(saleItem)
				sale.Items = append(sale.Items, saleItem)
			}
		}

		applied, capped := pricing.ApplySaleDiscount(totals, decimalOrZero(req.DiscountAmount))
		if capped {
			if s.negativeTotalPolicy == config.NegativeTotalReject {
				return store.InvalidField("discountAmount", fmt.Sprintf("exceeds the amount due %s", totals.PreSale().StringFixed(2)))
			}
			s.logger.Warn("sale discount exceeds amount due; final amount clamped to zero",
				zap.String("organization_id", actor.OrganizationID),
				zap.String("sale_id", sale.ID),
				zap.String("requested_discount", decimalOrZero(req.DiscountAmount).StringFixed(2)),
				zap.String("applied_discount", applied.StringFixed(2)),
			)
		}

		sale.TotalAmount = totals.Subtotal
		sale.SaleDiscountAmount = applied
		sale.DiscountAmount = totals.ItemDiscount.Add(applied)
		sale.TaxAmount = totals.Tax
		sale.FinalAmount = totals.Subtotal.Sub(sale.DiscountAmount).Add(totals.Tax)

		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}

		if customer != nil {
			if points := pricing.LoyaltyPoints(sale.FinalAmount); points > 0 {
				if err := tx.UpdateCustomerPoints(ctx, customer.ID, customer.LoyaltyPoints+points); err != nil {
					return err
				}
				if err := tx.InsertLoyaltyTransaction(ctx, domain.LoyaltyTransaction{
					ID:              xid.New("loyalty"),
					OrganizationID:  actor.OrganizationID,
					CustomerID:      customer.ID,
					SaleID:          sale.ID,
					Points:          points,
					TransactionType: domain.LoyaltyEarn,
					CreatedAt:       now,
				}); err != nil {
					return err
				}
			}
		}

		return tx.InsertAuditLog(ctx, s.auditEntry(actor, "sale_create", "sale", sale.ID,
			fmt.Sprintf("number=%s,final=%s,items=%d,method=%s", sale.SaleNumber, sale.FinalAmount.StringFixed(2), len(sale.Items), sale.PaymentMethod)))
	})
	if err != nil {
		return domain.Sale{}, s.fail("create sale", err)
	}

	created, err := s.repo.GetSale(ctx, actor.OrganizationID, sale.ID)
	if err != nil {
		s.logger.Warn("sale created but reload failed", zap.String("sale_id", sale.ID), zap.Error(err))
		return sale, nil
	}
	return *created, nil
}

func (s *Service) ListSales(ctx context.Context, query domain.SaleListQuery) (domain.SaleListResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	page := max(query.Page, 1)
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = defaultSalePageSize
	}
	pageSize = min(pageSize, maxSalePageSize)

	filter := store.SaleFilter{
		OrganizationID: actor.OrganizationID,
		Search:         strings.TrimSpace(query.Search),
		PaymentMethod:  strings.ToUpper(strings.TrimSpace(query.PaymentMethod)),
		PaymentStatus:  strings.ToUpper(strings.TrimSpace(query.PaymentStatus)),
		Offset:         (page - 1) * pageSize,
		Limit:          pageSize,
	}
	if filter.PaymentMethod != "" && !isSupportedPaymentMethod(filter.PaymentMethod) {
		return domain.SaleListResponse{}, store.InvalidField("paymentMethod", "is not supported")
	}

	filter.From, filter.To, err = DateRange(query.DateRange, s.now(), s.tenantLocation(ctx, actor.OrganizationID))
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	sales, total, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return domain.SaleListResponse{}, s.fail("list sales", err)
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	return domain.SaleListResponse{Sales: sales, TotalCount: total}, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSale(ctx, actor.OrganizationID, strings.TrimSpace(saleID))
	if err != nil {
		return domain.Sale{}, s.fail("get sale", err)
	}
	return *sale, nil
}

// resolveSaleLocation picks the request's location, then the member's
// current check-in location, then the tenant default.
func (s *Service) resolveSaleLocation(ctx context.Context, tx store.Tx, actor domain.Actor, requested *string) (string, error) {
	if id := valueOr(requested, ""); id != "" {
		location, err := tx.GetLocation(ctx, actor.OrganizationID, id)
		if err != nil {
			return "", err
		}
		return location.ID, nil
	}

	if actor.MemberID != "" {
		member, err := tx.LockMember(ctx, actor.OrganizationID, actor.MemberID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		if member != nil && member.IsCheckedIn && member.CurrentCheckInLocationID != nil {
			if location, err := tx.GetLocation(ctx, actor.OrganizationID, *member.CurrentCheckInLocationID); err == nil {
				return location.ID, nil
			}
		}
	}

	settings, err := tx.GetSettings(ctx, actor.OrganizationID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if settings != nil && settings.DefaultLocationID != nil {
		location, err := tx.GetLocation(ctx, actor.OrganizationID, *settings.DefaultLocationID)
		if err == nil {
			return location.ID, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}
	return "", store.InvalidField("locationId", "is required when the member is not checked in and no default location is set")
}

func validateSaleRequest(req domain.SaleCreateRequest) error {
	fields := map[string]string{}
	if len(req.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		fields["paymentMethod"] = "must be one of CASH, CARD, MOBILE_MONEY, BANK_TRANSFER, CREDIT"
	}
	if req.DiscountAmount != nil && req.DiscountAmount.IsNegative() {
		fields["discountAmount"] = "must not be negative"
	}
	for i, item := range req.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ProductID) == "" {
			fields[prefix+".productId"] = "is required"
		}
		if item.Quantity < 1 {
			fields[prefix+".quantity"] = "must be at least 1"
		}
		if item.UnitPriceOverride != nil && item.UnitPriceOverride.IsNegative() {
			fields[prefix+".unitPriceOverride"] = "must not be negative"
		}
		if item.DiscountAmount != nil && item.DiscountAmount.IsNegative() {
			fields[prefix+".discountAmount"] = "must not be negative"
		}
		if item.TaxRate != nil && (item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(taxRateCeiling)) {
			fields[prefix+".taxRate"] = "must be between 0 and 1"
		}
	}
	if len(fields) > 0 {
		return &store.ValidationError{Message: "invalid sale", Fields: fields}
	}
	return nil
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentMobileMoney, domain.PaymentBankTransfer, domain.PaymentCredit:
		return true
	default:
		return false
	}
}

func paymentStatusFor(method string) string {
	if method == domain.PaymentCredit {
		return domain.PaymentStatusPending
	}
	return domain.PaymentStatusCompleted
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
