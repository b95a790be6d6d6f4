package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/ledger"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
)

func (s *Service) ReceiveBatch(ctx context.Context, req domain.BatchReceiveRequest) (domain.StockBatch, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.StockBatch{}, err
	}

	expiry, err := parseDate("expiryDate", req.ExpiryDate)
	if err != nil {
		return domain.StockBatch{}, err
	}
	now := s.now().UTC()
	receivedAt := now
	if req.ReceivedAt != nil {
		receivedAt = req.ReceivedAt.UTC()
	}

	var batch domain.StockBatch
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		batch, err = ledger.Receive(ctx, tx, ledger.ReceiveInput{
			OrganizationID: actor.OrganizationID,
			ProductID:      strings.TrimSpace(req.ProductID),
			VariantID:      req.VariantID,
			LocationID:     strings.TrimSpace(req.LocationID),
			PositionID:     req.PositionID,
			Quantity:       req.Quantity,
			PurchasePrice:  req.PurchasePrice,
			SpaceOccupied:  req.SpaceOccupied,
			ExpiryDate:     expiry,
			ReceivedAt:     receivedAt,
			MemberID:       actor.MemberID,
			At:             now,
		})
		if err != nil {
			return err
		}
		return tx.InsertAuditLog(ctx, s.auditEntry(actor, "batch_receive", "stock_batch", batch.ID,
			fmt.Sprintf("product=%s,qty=%d,cost=%s", batch.ProductID, batch.InitialQuantity, batch.PurchasePrice)))
	})
	if err != nil {
		return domain.StockBatch{}, s.fail("receive batch", err)
	}
	return batch, nil
}

func (s *Service) MoveBatch(ctx context.Context, batchID string, req domain.BatchMoveRequest) (domain.BatchMoveResponse, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.BatchMoveResponse{}, err
	}

	var result ledger.MoveResult
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		result, err = ledger.Move(ctx, tx, ledger.MoveInput{
			OrganizationID:        actor.OrganizationID,
			BatchID:               strings.TrimSpace(batchID),
			Quantity:              req.Quantity,
			DestinationPositionID: strings.TrimSpace(req.DestinationPositionID),
			MemberID:              actor.MemberID,
			At:                    s.now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.InsertAuditLog(ctx, s.auditEntry(actor, "batch_move", "stock_batch", batchID,
			fmt.Sprintf("qty=%d,destination=%s,split=%t,result=%s", req.Quantity, req.DestinationPositionID, result.Split, result.Batch.ID)))
	})
	if err != nil {
		return domain.BatchMoveResponse{}, s.fail("move batch", err)
	}
	return domain.BatchMoveResponse{Batch: result.Batch, Source: result.Source, Split: result.Split}, nil
}

// ListBatches returns batches matching the filters. A non-empty order
// (FIFO or FEFO) sorts them in the sequence a sale would deplete them.
func (s *Service) ListBatches(ctx context.Context, productID string, variantID string, locationID string, includeDepleted bool, limit int, order string) ([]domain.StockBatch, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	var policy ledger.Policy
	if strings.TrimSpace(order) != "" {
		var ok bool
		if policy, ok = ledger.ParsePolicy(order); !ok {
			return nil, store.InvalidField("order", "must be FIFO or FEFO")
		}
	}
	batches, err := s.repo.ListBatches(ctx, store.BatchFilter{
		OrganizationID:  actor.OrganizationID,
		ProductID:       strings.TrimSpace(productID),
		VariantID:       strings.TrimSpace(variantID),
		LocationID:      strings.TrimSpace(locationID),
		IncludeDepleted: includeDepleted,
		Limit:           limit,
	})
	if err != nil {
		return nil, s.fail("list batches", err)
	}
	if policy != "" {
		ledger.Order(batches, policy)
	}
	return batches, nil
}

func (s *Service) ListStock(ctx context.Context, locationID string) ([]domain.VariantStock, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.ListVariantStock(ctx, actor.OrganizationID, strings.TrimSpace(locationID))
	if err != nil {
		return nil, s.fail("list stock", err)
	}
	return totals, nil
}

func (s *Service) ListMovements(ctx context.Context, batchID string) ([]domain.StockMovement, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := s.repo.ListMovements(ctx, actor.OrganizationID, strings.TrimSpace(batchID))
	if err != nil {
		return nil, s.fail("list movements", err)
	}
	return movements, nil
}
