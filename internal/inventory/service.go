package inventory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dentara-clinic/dentara/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByBranch(ctx context.Context, branchID int64) ([]Item, error)
	GetByID(ctx context.Context, id int64) (Item, error)
	ListTxns(ctx context.Context, itemID int64, limit, offset int) ([]StockTxn, error)
	CountTxns(ctx context.Context, itemID int64) (int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock mutations. Every mutation happens inside a
// repeatable-read transaction and leaves a stock_txns row behind.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds the Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListByBranch lists a branch's items.
func (s *Service) ListByBranch(ctx context.Context, branchID int64) ([]Item, error) {
	if branchID == 0 {
		return nil, shared.ErrBranchRequired
	}
	return s.repo.ListByBranch(ctx, branchID)
}

// Get fetches one item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetByID(ctx, id)
}

// History lists one page of an item's stock movements, newest first.
func (s *Service) History(ctx context.Context, itemID int64, page, perPage int) ([]StockTxn, shared.Pagination, error) {
	total, err := s.repo.CountTxns(ctx, itemID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pg := shared.NewPagination(page, perPage, total)
	txns, err := s.repo.ListTxns(ctx, itemID, pg.PerPage, (pg.Page-1)*pg.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return txns, pg, nil
}

// Adjust applies a manual stock correction. Unlike the automatic pay-off
// deduction it refuses to take stock below zero.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Item, error) {
	if input.Change == 0 {
		return Item{}, fmt.Errorf("%w: %s", shared.ErrValidation, ErrZeroChange)
	}
	txnType := input.Type
	if txnType == "" {
		txnType = TxnAdjust
	}

	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		newStock := item.StockLevel + input.Change
		if newStock < 0 {
			return ErrInsufficientStock
		}
		if err := tx.UpdateStock(ctx, item.ID, newStock); err != nil {
			return err
		}
		item.StockLevel = newStock
		updated = item
		return tx.InsertTxn(ctx, StockTxn{
			ItemID:     item.ID,
			Type:       txnType,
			Change:     input.Change,
			StockAfter: newStock,
			Reason:     input.Reason,
			ActorID:    input.ActorID,
		})
	})
	if err != nil {
		return Item{}, err
	}

	s.record(ctx, "inventory:adjust", updated.ID, map[string]any{
		"change": input.Change,
		"stock":  updated.StockLevel,
		"reason": input.Reason,
	})
	return updated, nil
}

// deduct removes qty units for a paid-off medicine line, clamping at zero.
// Only the reconciler calls this.
func (s *Service) deduct(ctx context.Context, itemID int64, qty int, refLedgerID int64) (Item, error) {
	if qty <= 0 {
		return Item{}, fmt.Errorf("%w: deduction quantity %d", shared.ErrValidation, qty)
	}

	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		newStock := item.StockLevel - qty
		if newStock < 0 {
			newStock = 0
		}
		if err := tx.UpdateStock(ctx, item.ID, newStock); err != nil {
			return err
		}
		item.StockLevel = newStock
		updated = item
		ref := refLedgerID
		return tx.InsertTxn(ctx, StockTxn{
			ItemID:      item.ID,
			Type:        TxnDeduct,
			Change:      -qty,
			StockAfter:  newStock,
			Reason:      "medicine line paid off",
			RefLedgerID: &ref,
		})
	})
	if err != nil {
		return Item{}, err
	}

	s.record(ctx, "inventory:deduct", updated.ID, map[string]any{
		"qty":    qty,
		"stock":  updated.StockLevel,
		"ledger": refLedgerID,
	})
	return updated, nil
}

func (s *Service) record(ctx context.Context, action string, itemID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "inventory_item",
		EntityID: strconv.FormatInt(itemID, 10),
		Meta:     meta,
	})
}
