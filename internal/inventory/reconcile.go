package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// IdempotencyPort guards against double deductions for the same pay-off event.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Reconciler watches ledger saves and deducts stock when a medicine line's
// remaining balance crosses from positive to zero or below. The transition
// check is the primary guard; the idempotency key is a second one that holds
// across retried saves. A payment undo crosses back to positive and releases
// the key, so paying the line off again deducts again.
type Reconciler struct {
	logger  *slog.Logger
	service *Service
	idem    IdempotencyPort
}

// NewReconciler builds the Reconciler.
func NewReconciler(logger *slog.Logger, service *Service, idem IdempotencyPort) *Reconciler {
	return &Reconciler{logger: logger, service: service, idem: idem}
}

// LineSaved implements ledger.ReconcilerPort. Deductions only fire on the
// pay-off transition, so re-saving an already settled line or editing its
// description never touches stock again. Reverting a payment never restocks,
// but it releases the pay-off key so a later settlement deducts once more.
func (r *Reconciler) LineSaved(ctx context.Context, before, after ledger.Line) error {
	if after.ItemType != ledger.ItemMedicine || after.InventoryID == nil {
		return nil
	}
	key := fmt.Sprintf("payoff:%d", after.ID)

	if !before.AmountRemaining.IsPositive() && after.AmountRemaining.IsPositive() {
		if r.idem != nil {
			if err := r.idem.Delete(ctx, key); err != nil {
				return fmt.Errorf("release pay-off key for ledger line %d: %w", after.ID, err)
			}
		}
		return nil
	}
	if !before.AmountRemaining.IsPositive() || after.AmountRemaining.IsPositive() {
		return nil
	}

	if r.idem != nil {
		if err := r.idem.CheckAndInsert(ctx, key, "inventory.deduct"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				r.logger.InfoContext(ctx, "stock deduction already applied",
					slog.Int64("ledger_id", after.ID))
				return nil
			}
			return err
		}
	}

	item, err := r.service.deduct(ctx, *after.InventoryID, after.Quantity, after.ID)
	if err != nil {
		return fmt.Errorf("deduct stock for ledger line %d: %w", after.ID, err)
	}
	r.logger.InfoContext(ctx, "stock deducted on pay-off",
		slog.Int64("ledger_id", after.ID),
		slog.Int64("item_id", item.ID),
		slog.Int("qty", after.Quantity),
		slog.Int("stock_after", item.StockLevel))
	return nil
}
