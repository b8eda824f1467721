package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Visit is the derived aggregate of all ledger lines for one patient on one
// date. It is never persisted; it is recomputed from the flat line list.
type Visit struct {
	Key            string
	PatientID      *int64
	PatientName    string
	Date           time.Time
	Lines          []Line
	TotalVal       decimal.Decimal
	TotalPaid      decimal.Decimal
	TotalRemaining decimal.Decimal
	// FirstCreatedAt is the created_at of the first-seen line, used as the
	// stable sort key for the sheet view.
	FirstCreatedAt time.Time
}

// GroupKey builds the visit grouping key for a line: patient id when linked,
// manually entered name as fallback, and finally the line's own id so an
// unlinked anonymous line never merges with anything.
func GroupKey(l Line) string {
	day := l.Date.Format("2006-01-02")
	if l.PatientID != nil {
		return fmt.Sprintf("p:%d:%s", *l.PatientID, day)
	}
	if l.PatientName != "" {
		return fmt.Sprintf("n:%s:%s", l.PatientName, day)
	}
	return fmt.Sprintf("l:%d:%s", l.ID, day)
}

// VisitOrder selects how GroupByVisit sorts its result.
type VisitOrder int

const (
	// OrderSheet sorts ascending by the first-seen line's created_at, the
	// spreadsheet-style day view.
	OrderSheet VisitOrder = iota
	// OrderRecent sorts descending by visit date, the history list view.
	OrderRecent
)

// GroupByVisit collapses a flat line list into visits. Grouping is stable:
// lines keep their relative order inside each visit and the first-seen
// line's created_at anchors the group.
func GroupByVisit(lines []Line, order VisitOrder) []Visit {
	index := make(map[string]int)
	visits := make([]Visit, 0)

	for _, l := range lines {
		key := GroupKey(l)
		i, ok := index[key]
		if !ok {
			index[key] = len(visits)
			visits = append(visits, Visit{
				Key:            key,
				PatientID:      l.PatientID,
				PatientName:    l.PatientName,
				Date:           l.Date,
				FirstCreatedAt: l.CreatedAt,
			})
			i = index[key]
		}
		v := &visits[i]
		v.Lines = append(v.Lines, l)
		v.TotalVal = v.TotalVal.Add(l.TotalPrice)
		v.TotalPaid = v.TotalPaid.Add(l.AmountPaid)
	}

	for i := range visits {
		visits[i].TotalRemaining = visits[i].TotalVal.Sub(visits[i].TotalPaid)
	}

	switch order {
	case OrderRecent:
		sort.SliceStable(visits, func(i, j int) bool {
			return visits[i].Date.After(visits[j].Date)
		})
	default:
		sort.SliceStable(visits, func(i, j int) bool {
			return visits[i].FirstCreatedAt.Before(visits[j].FirstCreatedAt)
		})
	}
	return visits
}

// GroupPatch carries the shared fields an edit on one line must propagate to
// every line of the visit. Nil fields are left untouched.
type GroupPatch struct {
	PatientID   *int64
	PatientName *string
	DoctorID    *int64
	CashierID   *int64
}

func (p GroupPatch) apply(l *Line) {
	if p.PatientID != nil {
		l.PatientID = clonePtr(p.PatientID)
	}
	if p.PatientName != nil {
		l.PatientName = *p.PatientName
	}
	if p.DoctorID != nil {
		l.DoctorID = clonePtr(p.DoctorID)
	}
	if p.CashierID != nil {
		l.CashierID = clonePtr(p.CashierID)
	}
}

// DuplicateLine creates a fresh treatment line for "add another treatment to
// this visit": same patient/doctor/cashier association, zeroed money fields.
func DuplicateLine(src Line) Line {
	return Line{
		BranchID:    src.BranchID,
		PatientID:   clonePtr(src.PatientID),
		PatientName: src.PatientName,
		DoctorID:    clonePtr(src.DoctorID),
		CashierID:   clonePtr(src.CashierID),
		ItemType:    ItemTreatment,
		Quantity:    1,
		Date:        src.Date,
		Status:      StatusPending,
	}
}
