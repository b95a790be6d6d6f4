// Package ledger maintains stock as batches with remaining quantities. Every
// function runs inside the caller's transaction and leaves no writes behind
// when it returns an error before its first mutation.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/xid"
)

type ReceiveInput struct {
	OrganizationID string
	ProductID      string
	VariantID      *string
	LocationID     string
	PositionID     *string
	Quantity       int
	PurchasePrice  decimal.Decimal
	SpaceOccupied  decimal.Decimal
	ExpiryDate     *time.Time
	ReceivedAt     time.Time
	MemberID       string
	At             time.Time
}

type DepleteInput struct {
	Key       domain.StockKey
	SKU       string
	Quantity  int
	Policy    Policy
	Reference string
	MemberID  string
	At        time.Time
}

type MoveInput struct {
	OrganizationID        string
	BatchID               string
	Quantity              int
	DestinationPositionID string
	MemberID              string
	At                    time.Time
}

type MoveResult struct {
	Batch  domain.StockBatch
	Source *domain.StockBatch
	Split  bool
}

// ResolveProduct loads a sellable product and its variant. A product with
// active variants requires one of them to be selected.
func ResolveProduct(ctx context.Context, tx store.Tx, organizationID string, productID string, variantID *string) (*domain.Product, *domain.ProductVariant, error) {
	product, err := tx.GetProduct(ctx, organizationID, productID)
	if err != nil {
		return nil, nil, err
	}
	if !product.Active {
		return nil, nil, store.NotFound("product", productID)
	}

	if variantID == nil || *variantID == "" {
		for _, v := range product.Variants {
			if v.Active {
				return nil, nil, store.InvalidField("variantId", fmt.Sprintf("product %s requires a variant", product.SKU))
			}
		}
		return product, nil, nil
	}

	variant, err := tx.GetVariant(ctx, organizationID, *variantID)
	if err != nil {
		return nil, nil, err
	}
	if !variant.Active || variant.ProductID != product.ID {
		return nil, nil, store.NotFound("variant", *variantID)
	}
	return product, variant, nil
}

func Receive(ctx context.Context, tx store.Tx, in ReceiveInput) (domain.StockBatch, error) {
	if in.Quantity < 1 {
		return domain.StockBatch{}, store.InvalidField("quantity", "must be at least 1")
	}
	if in.PurchasePrice.IsNegative() {
		return domain.StockBatch{}, store.InvalidField("purchasePrice", "must not be negative")
	}
	if in.SpaceOccupied.IsNegative() {
		return domain.StockBatch{}, store.InvalidField("spaceOccupied", "must not be negative")
	}

	product, variant, err := ResolveProduct(ctx, tx, in.OrganizationID, in.ProductID, in.VariantID)
	if err != nil {
		return domain.StockBatch{}, err
	}
	if _, err := tx.GetLocation(ctx, in.OrganizationID, in.LocationID); err != nil {
		return domain.StockBatch{}, err
	}

	batch := domain.StockBatch{
		ID:              xid.New("batch"),
		OrganizationID:  in.OrganizationID,
		ProductID:       product.ID,
		LocationID:      in.LocationID,
		InitialQuantity: in.Quantity,
		CurrentQuantity: in.Quantity,
		PurchasePrice:   in.PurchasePrice.Round(2),
		SpaceOccupied:   in.SpaceOccupied.Round(2),
		ExpiryDate:      in.ExpiryDate,
		ReceivedAt:      in.ReceivedAt,
		CreatedAt:       in.At,
	}
	if variant != nil {
		batch.VariantID = &variant.ID
	}

	if in.PositionID != nil && *in.PositionID != "" {
		position, err := tx.LockPosition(ctx, in.OrganizationID, *in.PositionID)
		if err != nil {
			return domain.StockBatch{}, err
		}
		if position.LocationID != in.LocationID {
			return domain.StockBatch{}, store.InvalidField("positionId", "position belongs to a different location")
		}
		if err := checkPositionFree(*position, in.Quantity); err != nil {
			return domain.StockBatch{}, err
		}
		if err := tx.SetPositionOccupied(ctx, position.ID, true); err != nil {
			return domain.StockBatch{}, err
		}
		batch.PositionID = &position.ID
	}

	if err := tx.InsertBatch(ctx, batch); err != nil {
		return domain.StockBatch{}, err
	}
	if err := tx.AdjustStock(ctx, batch.Key(), in.Quantity, in.At); err != nil {
		return domain.StockBatch{}, err
	}
	if err := record(ctx, tx, batch, domain.MovementReceipt, in.Quantity, 0, in.Quantity, "", in.MemberID, in.At); err != nil {
		return domain.StockBatch{}, err
	}
	return batch, nil
}

// Deplete takes Quantity units from the eligible batches in policy order.
// Availability is checked against the total before any batch is touched.
func Deplete(ctx context.Context, tx store.Tx, in DepleteInput) ([]domain.BatchAllocation, error) {
	if in.Quantity < 1 {
		return nil, store.InvalidField("quantity", "must be at least 1")
	}

	batches, err := tx.LockAvailableBatches(ctx, in.Key)
	if err != nil {
		return nil, err
	}
	Order(batches, in.Policy)

	available := 0
	for _, b := range batches {
		available += b.CurrentQuantity
	}
	if available < in.Quantity {
		return nil, &store.InsufficientStockError{SKU: in.SKU, Required: in.Quantity, Available: available}
	}

	remaining := in.Quantity
	allocations := make([]domain.BatchAllocation, 0, 2)
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		take := min(remaining, batch.CurrentQuantity)
		before := batch.CurrentQuantity
		batch.CurrentQuantity -= take
		remaining -= take

		if err := tx.UpdateBatch(ctx, batch); err != nil {
			return nil, err
		}
		if batch.CurrentQuantity == 0 && batch.PositionID != nil {
			if err := tx.SetPositionOccupied(ctx, *batch.PositionID, false); err != nil {
				return nil, err
			}
		}
		if err := record(ctx, tx, batch, domain.MovementSale, take, before, batch.CurrentQuantity, in.Reference, in.MemberID, in.At); err != nil {
			return nil, err
		}

		allocations = append(allocations, domain.BatchAllocation{
			BatchID:    batch.ID,
			Quantity:   take,
			UnitCost:   batch.PurchasePrice,
			ReceivedAt: batch.ReceivedAt,
			ExpiryDate: batch.ExpiryDate,
		})
	}

	if err := tx.AdjustStock(ctx, in.Key, -in.Quantity, in.At); err != nil {
		return nil, err
	}
	return allocations, nil
}

// Move relocates a batch in place when the whole remainder stays within its
// location, and otherwise splits a new batch off at the destination.
func Move(ctx context.Context, tx store.Tx, in MoveInput) (MoveResult, error) {
	if in.Quantity < 1 {
		return MoveResult{}, store.InvalidField("quantity", "must be at least 1")
	}
	if in.DestinationPositionID == "" {
		return MoveResult{}, store.InvalidField("destinationPositionId", "is required")
	}

	source, err := tx.LockBatch(ctx, in.OrganizationID, in.BatchID)
	if err != nil {
		return MoveResult{}, err
	}
	if in.Quantity > source.CurrentQuantity {
		return MoveResult{}, store.InvalidField("quantity", fmt.Sprintf("exceeds remaining quantity %d", source.CurrentQuantity))
	}

	dest, err := tx.LockPosition(ctx, in.OrganizationID, in.DestinationPositionID)
	if err != nil {
		return MoveResult{}, err
	}
	if source.PositionID != nil && *source.PositionID == dest.ID {
		return MoveResult{}, store.InvalidField("destinationPositionId", "batch is already stored there")
	}
	if err := checkPositionFree(*dest, in.Quantity); err != nil {
		return MoveResult{}, err
	}

	sameLocation := dest.LocationID == source.LocationID
	if sameLocation && in.Quantity == source.CurrentQuantity {
		reference := ""
		if source.PositionID != nil {
			reference = *source.PositionID
			if err := tx.SetPositionOccupied(ctx, *source.PositionID, false); err != nil {
				return MoveResult{}, err
			}
		}
		if err := tx.SetPositionOccupied(ctx, dest.ID, true); err != nil {
			return MoveResult{}, err
		}
		moved := *source
		moved.PositionID = &dest.ID
		if err := tx.UpdateBatch(ctx, moved); err != nil {
			return MoveResult{}, err
		}
		if err := record(ctx, tx, moved, domain.MovementRelocation, in.Quantity, moved.CurrentQuantity, moved.CurrentQuantity, reference, in.MemberID, in.At); err != nil {
			return MoveResult{}, err
		}
		return MoveResult{Batch: moved}, nil
	}

	before := source.CurrentQuantity
	remainder := *source
	remainder.CurrentQuantity -= in.Quantity
	if err := tx.UpdateBatch(ctx, remainder); err != nil {
		return MoveResult{}, err
	}
	if remainder.CurrentQuantity == 0 && remainder.PositionID != nil {
		if err := tx.SetPositionOccupied(ctx, *remainder.PositionID, false); err != nil {
			return MoveResult{}, err
		}
	}

	split := domain.StockBatch{
		ID:              xid.New("batch"),
		OrganizationID:  source.OrganizationID,
		ProductID:       source.ProductID,
		VariantID:       source.VariantID,
		LocationID:      dest.LocationID,
		PositionID:      &dest.ID,
		SourceBatchID:   &source.ID,
		InitialQuantity: in.Quantity,
		CurrentQuantity: in.Quantity,
		PurchasePrice:   source.PurchasePrice,
		SpaceOccupied:   ProrateSpace(*source, in.Quantity),
		ExpiryDate:      source.ExpiryDate,
		ReceivedAt:      source.ReceivedAt,
		CreatedAt:       in.At,
	}
	if err := tx.InsertBatch(ctx, split); err != nil {
		return MoveResult{}, err
	}
	if err := tx.SetPositionOccupied(ctx, dest.ID, true); err != nil {
		return MoveResult{}, err
	}

	if !sameLocation {
		if err := tx.AdjustStock(ctx, remainder.Key(), -in.Quantity, in.At); err != nil {
			return MoveResult{}, err
		}
		if err := tx.AdjustStock(ctx, split.Key(), in.Quantity, in.At); err != nil {
			return MoveResult{}, err
		}
	}

	if err := record(ctx, tx, remainder, domain.MovementTransferOut, in.Quantity, before, remainder.CurrentQuantity, split.ID, in.MemberID, in.At); err != nil {
		return MoveResult{}, err
	}
	if err := record(ctx, tx, split, domain.MovementTransferIn, in.Quantity, 0, in.Quantity, remainder.ID, in.MemberID, in.At); err != nil {
		return MoveResult{}, err
	}

	return MoveResult{Batch: split, Source: &remainder, Split: true}, nil
}

// ProrateSpace returns the share of the source batch's space that quantity
// units represent, measured against the originally received quantity.
func ProrateSpace(source domain.StockBatch, quantity int) decimal.Decimal {
	if source.InitialQuantity < 1 || source.SpaceOccupied.IsZero() {
		return decimal.Zero
	}
	return source.SpaceOccupied.
		Mul(decimal.NewFromInt(int64(quantity))).
		Div(decimal.NewFromInt(int64(source.InitialQuantity))).
		Round(2)
}

func checkPositionFree(position domain.StoragePosition, quantity int) error {
	if position.IsOccupied {
		return store.Conflict("storage position %s is already occupied", position.Code)
	}
	if position.Capacity > 0 && quantity > position.Capacity {
		return store.InvalidField("quantity", fmt.Sprintf("exceeds position capacity %d", position.Capacity))
	}
	return nil
}

func record(ctx context.Context, tx store.Tx, batch domain.StockBatch, movementType string, quantity int, before int, after int, reference string, memberID string, at time.Time) error {
	key := batch.Key()
	return tx.InsertMovement(ctx, domain.StockMovement{
		ID:             xid.New("mov"),
		OrganizationID: batch.OrganizationID,
		BatchID:        batch.ID,
		ProductID:      key.ProductID,
		VariantID:      key.VariantID,
		LocationID:     key.LocationID,
		MovementType:   movementType,
		Quantity:       quantity,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reference:      reference,
		MemberID:       memberID,
		CreatedAt:      at,
	})
}
