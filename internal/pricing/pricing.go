// Package pricing turns a requested cart line and the batches it was
// fulfilled from into sale items, and rolls items up into sale totals.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
)

// Line is one requested cart line after product resolution.
type Line struct {
	Index     int
	ProductID string
	VariantID *string
	SKU       string
	UnitPrice decimal.Decimal
	Quantity  int
	Discount  decimal.Decimal
	TaxRate   decimal.Decimal
}

type Totals struct {
	Subtotal     decimal.Decimal
	ItemDiscount decimal.Decimal
	Tax          decimal.Decimal
}

// PreSale is the amount owed before any sale-level discount.
func (t Totals) PreSale() decimal.Decimal {
	return t.Subtotal.Sub(t.ItemDiscount).Add(t.Tax)
}

func (t *Totals) Add(item domain.SaleItem) {
	t.Subtotal = t.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	t.ItemDiscount = t.ItemDiscount.Add(item.DiscountAmount)
	t.Tax = t.Tax.Add(item.TaxAmount)
}

// UnitPrice is the override when present, else base price plus the variant
// modifier.
func UnitPrice(product domain.Product, variant *domain.ProductVariant, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return override.Round(2)
	}
	price := product.BasePrice
	if variant != nil {
		price = price.Add(variant.PriceModifier)
	}
	return price.Round(2)
}

// SKU prefers the variant's code.
func SKU(product domain.Product, variant *domain.ProductVariant) string {
	if variant != nil && variant.SKU != "" {
		return variant.SKU
	}
	return product.SKU
}

// BuildItems splits a line into one sale item per allocation. Each share is
// the rounded cumulative discount minus the rounded cumulative discount of
// the allocations before it, so shares are never negative and add up to the
// line discount exactly.
func BuildItems(line Line, allocations []domain.BatchAllocation) []domain.SaleItem {
	items := make([]domain.SaleItem, 0, len(allocations))
	discount := line.Discount.Round(2)
	qty := decimal.NewFromInt(int64(line.Quantity))
	given := decimal.Zero
	cumulative := 0

	for i, alloc := range allocations {
		taken := decimal.NewFromInt(int64(alloc.Quantity))
		sub := line.UnitPrice.Mul(taken)

		cumulative += alloc.Quantity
		target := discount
		if i < len(allocations)-1 && line.Quantity > 0 {
			target = decimal.Min(discount.Mul(decimal.NewFromInt(int64(cumulative))).Div(qty).Round(2), discount)
		}
		share := target.Sub(given)
		given = target

		taxable := sub.Sub(share)
		tax := Round(taxable.Mul(line.TaxRate))

		items = append(items, domain.SaleItem{
			LineIndex:      line.Index,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			SKU:            line.SKU,
			StockBatchID:   alloc.BatchID,
			Quantity:       alloc.Quantity,
			UnitPrice:      line.UnitPrice,
			UnitCost:       alloc.UnitCost,
			DiscountAmount: share,
			TaxRate:        line.TaxRate,
			TaxAmount:      tax,
			TotalAmount:    taxable.Add(tax),
		})
	}
	return items
}

// ApplySaleDiscount caps a sale-level discount at the pre-sale amount. The
// second result reports whether the request had to be capped.
func ApplySaleDiscount(totals Totals, requested decimal.Decimal) (applied decimal.Decimal, capped bool) {
	requested = requested.Round(2)
	ceiling := decimal.Max(totals.PreSale(), decimal.Zero)
	if requested.GreaterThan(ceiling) {
		return ceiling, true
	}
	return requested, false
}

// LoyaltyPoints awards one point per whole currency unit paid.
func LoyaltyPoints(final decimal.Decimal) int {
	if !final.IsPositive() {
		return 0
	}
	return int(final.Floor().IntPart())
}

// Round rounds half away from zero to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
