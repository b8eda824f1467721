package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const itemColumns = `id, branch_id, name, category, vendor, stock_level, sell_price, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		it    Item
		price pgtype.Numeric
	)
	err := row.Scan(&it.ID, &it.BranchID, &it.Name, &it.Category, &it.Vendor, &it.StockLevel, &price, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	it.SellPrice = itemDecimal(price)
	return it, nil
}

func itemDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	v, err := n.Value()
	if err != nil {
		return decimal.Zero
	}
	s, ok := v.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ListByBranch lists a branch's items alphabetically.
func (r *Repository) ListByBranch(ctx context.Context, branchID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE branch_id = $1 ORDER BY name`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByID fetches one item.
func (r *Repository) GetByID(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	return scanItem(row)
}

// ListTxns lists a page of an item's movements, newest first.
func (r *Repository) ListTxns(ctx context.Context, itemID int64, limit, offset int) ([]StockTxn, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, item_id, txn_type, change, stock_after, reason, ref_ledger_id, actor_id, created_at
		FROM stock_txns WHERE item_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, itemID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]StockTxn, 0)
	for rows.Next() {
		var (
			t   StockTxn
			ref pgtype.Int8
		)
		if err := rows.Scan(&t.ID, &t.ItemID, &t.Type, &t.Change, &t.StockAfter, &t.Reason, &ref, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, err
		}
		if ref.Valid {
			v := ref.Int64
			t.RefLedgerID = &v
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// CountTxns counts an item's movements for pagination.
func (r *Repository) CountTxns(ctx context.Context, itemID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_txns WHERE item_id = $1`, itemID).Scan(&total)
	return total, err
}

// GetForUpdate locks the item row for the duration of the transaction.
func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Item, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 FOR UPDATE`, id)
	return scanItem(row)
}

// UpdateStock writes the new stock level.
func (t *txRepository) UpdateStock(ctx context.Context, id int64, stock int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE inventory_items SET stock_level = $2, updated_at = NOW() WHERE id = $1`, id, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// InsertTxn records a stock movement.
func (t *txRepository) InsertTxn(ctx context.Context, txn StockTxn) error {
	var ref pgtype.Int8
	if txn.RefLedgerID != nil {
		ref = pgtype.Int8{Int64: *txn.RefLedgerID, Valid: true}
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_txns (item_id, txn_type, change, stock_after, reason, ref_ledger_id, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, txn.ItemID, txn.Type, txn.Change, txn.StockAfter, txn.Reason, ref, txn.ActorID)
	return err
}
