package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dentara-clinic/dentara/internal/shared"
)

type memoryRepo struct {
	items map[int64]Item
	txns  []StockTxn
}

func newMemoryRepo(items ...Item) *memoryRepo {
	r := &memoryRepo{items: make(map[int64]Item)}
	for _, it := range items {
		r.items[it.ID] = it
	}
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) ListByBranch(_ context.Context, branchID int64) ([]Item, error) {
	out := make([]Item, 0)
	for _, it := range r.items {
		if it.BranchID == branchID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return it, nil
}

func (r *memoryRepo) ListTxns(_ context.Context, itemID int64, limit, offset int) ([]StockTxn, error) {
	matched := make([]StockTxn, 0)
	for i := len(r.txns) - 1; i >= 0; i-- {
		if r.txns[i].ItemID == itemID {
			matched = append(matched, r.txns[i])
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memoryRepo) CountTxns(_ context.Context, itemID int64) (int, error) {
	total := 0
	for _, t := range r.txns {
		if t.ItemID == itemID {
			total++
		}
	}
	return total, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Item, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryRepo) UpdateStock(_ context.Context, id int64, stock int) error {
	it, ok := r.items[id]
	if !ok {
		return ErrItemNotFound
	}
	it.StockLevel = stock
	r.items[id] = it
	return nil
}

func (r *memoryRepo) InsertTxn(_ context.Context, txn StockTxn) error {
	txn.ID = int64(len(r.txns) + 1)
	r.txns = append(r.txns, txn)
	return nil
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, shared.AuditLog) error { return nil }

func amoxicillin(stock int) Item {
	return Item{ID: 1, BranchID: 1, Name: "Amoxicillin 500mg", Category: "antibiotic", StockLevel: stock, SellPrice: decimal.NewFromInt(5)}
}

func TestManualAdjustUpdatesStockAndRecordsTxn(t *testing.T) {
	repo := newMemoryRepo(amoxicillin(10))
	svc := NewService(repo, nopAudit{})

	item, err := svc.Adjust(context.Background(), AdjustInput{ItemID: 1, Change: -3, Reason: "expired batch"})
	require.NoError(t, err)
	require.Equal(t, 7, item.StockLevel)

	require.Len(t, repo.txns, 1)
	require.Equal(t, TxnAdjust, repo.txns[0].Type)
	require.Equal(t, -3, repo.txns[0].Change)
	require.Equal(t, 7, repo.txns[0].StockAfter)
}

func TestManualAdjustRefusesNegativeStock(t *testing.T) {
	repo := newMemoryRepo(amoxicillin(2))
	svc := NewService(repo, nopAudit{})

	_, err := svc.Adjust(context.Background(), AdjustInput{ItemID: 1, Change: -5, Reason: "typo"})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 2, repo.items[1].StockLevel)
	require.Empty(t, repo.txns)
}

func TestManualAdjustRejectsZeroChange(t *testing.T) {
	repo := newMemoryRepo(amoxicillin(2))
	svc := NewService(repo, nopAudit{})

	_, err := svc.Adjust(context.Background(), AdjustInput{ItemID: 1, Reason: "noop"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeductClampsAtZero(t *testing.T) {
	repo := newMemoryRepo(amoxicillin(1))
	svc := NewService(repo, nopAudit{})

	item, err := svc.deduct(context.Background(), 1, 3, 42)
	require.NoError(t, err)
	require.Equal(t, 0, item.StockLevel)

	require.Len(t, repo.txns, 1)
	require.Equal(t, TxnDeduct, repo.txns[0].Type)
	require.Equal(t, -3, repo.txns[0].Change)
	require.Equal(t, 0, repo.txns[0].StockAfter)
	require.NotNil(t, repo.txns[0].RefLedgerID)
	require.Equal(t, int64(42), *repo.txns[0].RefLedgerID)
}

func TestHistoryReturnsNewestFirst(t *testing.T) {
	repo := newMemoryRepo(amoxicillin(10))
	svc := NewService(repo, nopAudit{})

	_, err := svc.Adjust(context.Background(), AdjustInput{ItemID: 1, Change: -1, Reason: "first"})
	require.NoError(t, err)
	_, err = svc.Adjust(context.Background(), AdjustInput{ItemID: 1, Change: -2, Reason: "second"})
	require.NoError(t, err)

	txns, pg, err := svc.History(context.Background(), 1, 1, 10)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.Equal(t, "second", txns[0].Reason)
	require.Equal(t, "first", txns[1].Reason)
	require.Equal(t, 2, pg.Total)
	require.Equal(t, 1, pg.TotalPages)
}

func TestHistoryPaginates(t *testing.T) {
	repo := newMemoryRepo(amoxicillin(10))
	svc := NewService(repo, nopAudit{})

	for _, reason := range []string{"a", "b", "c"} {
		_, err := svc.Adjust(context.Background(), AdjustInput{ItemID: 1, Change: -1, Reason: reason})
		require.NoError(t, err)
	}

	txns, pg, err := svc.History(context.Background(), 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.Equal(t, "a", txns[0].Reason)
	require.Equal(t, 3, pg.Total)
	require.Equal(t, 2, pg.TotalPages)
}
