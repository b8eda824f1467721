package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stock-tracked product (medicine, consumable) sold over the
// counter or alongside a treatment.
type Item struct {
	ID         int64
	BranchID   int64
	Name       string
	Category   string
	Vendor     string
	StockLevel int
	SellPrice  decimal.Decimal
	UpdatedAt  time.Time
}

// TxnType enumerates stock movements.
type TxnType string

const (
	// TxnDeduct is the automatic deduction when a medicine line pays off.
	TxnDeduct TxnType = "DEDUCT"
	// TxnAdjust is a manual stock correction, positive or negative.
	TxnAdjust TxnType = "ADJUST"
	// TxnRestock is an inbound delivery.
	TxnRestock TxnType = "RESTOCK"
)

// StockTxn is one audit-style movement row. Every stock mutation writes one.
type StockTxn struct {
	ID          int64
	ItemID      int64
	Type        TxnType
	Change      int
	StockAfter  int
	Reason      string
	RefLedgerID *int64
	ActorID     int64
	CreatedAt   time.Time
}

// AdjustInput describes a manual stock adjustment.
type AdjustInput struct {
	ItemID  int64
	Change  int
	Type    TxnType
	Reason  string
	ActorID int64
}

var (
	// ErrItemNotFound indicates a missing inventory row.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrInsufficientStock indicates a manual adjustment below zero.
	ErrInsufficientStock = errors.New("inventory: stock cannot go negative")
	// ErrZeroChange indicates an adjustment of zero units.
	ErrZeroChange = errors.New("inventory: change must be non zero")
)
