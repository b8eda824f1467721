package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const lineColumns = `
	l.id, l.branch_id, l.patient_id, l.patient_name, l.doctor_id, l.cashier_id,
	l.treatment_id, l.inventory_id, l.plan_id, l.item_type, l.description,
	l.unit_price, l.quantity, l.total_price, l.amount_paid, l.amount_remaining,
	l.paid_aba, l.paid_cash_usd, l.paid_cash_khr, l.applied_rate,
	l.visit_date, l.appointment_time, l.duration_minutes, l.status, l.created_at,
	COALESCE(p.full_name, l.patient_name) AS display_name,
	COALESCE(d.full_name, '') AS doctor_name,
	COALESCE(c.full_name, '') AS cashier_name,
	COALESCE(t.name, '') AS treatment_name,
	COALESCE(i.name, '') AS inventory_name`

const lineJoins = `
	FROM ledger_entries l
	LEFT JOIN patients p ON p.id = l.patient_id
	LEFT JOIN staff d ON d.id = l.doctor_id
	LEFT JOIN staff c ON c.id = l.cashier_id
	LEFT JOIN treatments t ON t.id = l.treatment_id
	LEFT JOIN inventory_items i ON i.id = l.inventory_id`

func scanLine(row pgx.Row) (Line, error) {
	var (
		l                                                    Line
		patientID, doctorID, cashierID, treatID, invID, plID pgtype.Int8
		unitPrice, total, paid, remaining                    pgtype.Numeric
		aba, cashUSD, cashKHR, rate                          pgtype.Numeric
		visitDate                                            pgtype.Date
		createdAt                                            pgtype.Timestamptz
		rawName                                              string
	)
	err := row.Scan(
		&l.ID, &l.BranchID, &patientID, &rawName, &doctorID, &cashierID,
		&treatID, &invID, &plID, &l.ItemType, &l.Description,
		&unitPrice, &l.Quantity, &total, &paid, &remaining,
		&aba, &cashUSD, &cashKHR, &rate,
		&visitDate, &l.AppointmentTime, &l.DurationMinutes, &l.Status, &createdAt,
		&l.PatientName, &l.DoctorName, &l.CashierName, &l.TreatmentName, &l.InventoryName,
	)
	if err != nil {
		return Line{}, err
	}
	if l.PatientName == "" {
		l.PatientName = rawName
	}
	l.PatientID = ptrFromInt8(patientID)
	l.DoctorID = ptrFromInt8(doctorID)
	l.CashierID = ptrFromInt8(cashierID)
	l.TreatmentID = ptrFromInt8(treatID)
	l.InventoryID = ptrFromInt8(invID)
	l.PlanID = ptrFromInt8(plID)
	l.UnitPrice = decimalFromNumeric(unitPrice)
	l.TotalPrice = decimalFromNumeric(total)
	l.AmountPaid = decimalFromNumeric(paid)
	l.AmountRemaining = decimalFromNumeric(remaining)
	l.PaidABA = decimalFromNumeric(aba)
	l.PaidCashUSD = decimalFromNumeric(cashUSD)
	l.PaidCashKHR = decimalFromNumeric(cashKHR)
	l.AppliedRate = decimalFromNumeric(rate)
	l.Date = visitDate.Time
	l.CreatedAt = createdAt.Time
	return l, nil
}

func (r *Repository) queryLines(ctx context.Context, query string, args ...any) ([]Line, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Insert stores a new line and returns it with id and created_at set.
func (r *Repository) Insert(ctx context.Context, line Line) (Line, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO ledger_entries
		(branch_id, patient_id, patient_name, doctor_id, cashier_id, treatment_id,
		 inventory_id, plan_id, item_type, description, unit_price, quantity,
		 total_price, amount_paid, amount_remaining, paid_aba, paid_cash_usd,
		 paid_cash_khr, applied_rate, visit_date, appointment_time,
		 duration_minutes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		RETURNING id, created_at`,
		line.BranchID, int8FromPtr(line.PatientID), line.PatientName,
		int8FromPtr(line.DoctorID), int8FromPtr(line.CashierID),
		int8FromPtr(line.TreatmentID), int8FromPtr(line.InventoryID),
		int8FromPtr(line.PlanID), string(line.ItemType), line.Description,
		numericFromDecimal(line.UnitPrice), line.Quantity,
		numericFromDecimal(line.TotalPrice), numericFromDecimal(line.AmountPaid),
		numericFromDecimal(line.AmountRemaining), numericFromDecimal(line.PaidABA),
		numericFromDecimal(line.PaidCashUSD), numericFromDecimal(line.PaidCashKHR),
		rateParam(line.AppliedRate),
		pgtype.Date{Time: line.Date, Valid: !line.Date.IsZero()},
		line.AppointmentTime, line.DurationMinutes, string(line.Status),
	).Scan(&line.ID, &line.CreatedAt)
	if err != nil {
		return Line{}, err
	}
	return line, nil
}

// InsertBulk stores a batch of lines sequentially, returning the ones that
// were inserted. Callers that need partial-failure reporting go through the
// unit-of-work instead.
func (r *Repository) InsertBulk(ctx context.Context, lines []Line) ([]Line, error) {
	inserted := make([]Line, 0, len(lines))
	for _, line := range lines {
		created, err := r.Insert(ctx, line)
		if err != nil {
			return inserted, fmt.Errorf("bulk insert stopped at %d/%d: %w", len(inserted), len(lines), err)
		}
		inserted = append(inserted, created)
	}
	return inserted, nil
}

// GetByID fetches one line with joined display names.
func (r *Repository) GetByID(ctx context.Context, id int64) (Line, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+lineColumns+lineJoins+` WHERE l.id = $1`, id)
	line, err := scanLine(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, ErrLineNotFound
	}
	if err != nil {
		return Line{}, err
	}
	return line, nil
}

// ListByBranchDate lists a branch's lines for one visit date, oldest first.
func (r *Repository) ListByBranchDate(ctx context.Context, branchID int64, date time.Time) ([]Line, error) {
	return r.queryLines(ctx, `SELECT`+lineColumns+lineJoins+`
		WHERE l.branch_id = $1 AND l.visit_date = $2
		ORDER BY l.created_at, l.id`,
		branchID, pgtype.Date{Time: date, Valid: true})
}

// ListByBranchRange lists a branch's lines across an inclusive date range.
func (r *Repository) ListByBranchRange(ctx context.Context, branchID int64, from, to time.Time) ([]Line, error) {
	return r.queryLines(ctx, `SELECT`+lineColumns+lineJoins+`
		WHERE l.branch_id = $1 AND l.visit_date BETWEEN $2 AND $3
		ORDER BY l.visit_date, l.created_at, l.id`,
		branchID, pgtype.Date{Time: from, Valid: true}, pgtype.Date{Time: to, Valid: true})
}

// ListByPatient lists every line billed to a patient, newest visit first.
func (r *Repository) ListByPatient(ctx context.Context, patientID int64) ([]Line, error) {
	return r.queryLines(ctx, `SELECT`+lineColumns+lineJoins+`
		WHERE l.patient_id = $1
		ORDER BY l.visit_date DESC, l.created_at, l.id`,
		patientID)
}

// ListByIDs fetches an explicit id list, input order not guaranteed.
func (r *Repository) ListByIDs(ctx context.Context, ids []int64) ([]Line, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryLines(ctx, `SELECT`+lineColumns+lineJoins+`
		WHERE l.id = ANY($1)
		ORDER BY l.created_at, l.id`, ids)
}

// Update writes every mutable field of a line. The captured exchange rate
// is guarded with COALESCE: once stored it can never be overwritten, which
// keeps old riel payments valued at their original rate.
func (r *Repository) Update(ctx context.Context, line Line) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ledger_entries SET
		patient_id = $2, patient_name = $3, doctor_id = $4, cashier_id = $5,
		treatment_id = $6, inventory_id = $7, plan_id = $8, description = $9,
		unit_price = $10, quantity = $11, total_price = $12, amount_paid = $13,
		amount_remaining = $14, paid_aba = $15, paid_cash_usd = $16,
		paid_cash_khr = $17, applied_rate = COALESCE(applied_rate, $18),
		visit_date = $19, appointment_time = $20, duration_minutes = $21,
		status = $22
		WHERE id = $1`,
		line.ID, int8FromPtr(line.PatientID), line.PatientName,
		int8FromPtr(line.DoctorID), int8FromPtr(line.CashierID),
		int8FromPtr(line.TreatmentID), int8FromPtr(line.InventoryID),
		int8FromPtr(line.PlanID), line.Description,
		numericFromDecimal(line.UnitPrice), line.Quantity,
		numericFromDecimal(line.TotalPrice), numericFromDecimal(line.AmountPaid),
		numericFromDecimal(line.AmountRemaining), numericFromDecimal(line.PaidABA),
		numericFromDecimal(line.PaidCashUSD), numericFromDecimal(line.PaidCashKHR),
		rateParam(line.AppliedRate),
		pgtype.Date{Time: line.Date, Valid: !line.Date.IsZero()},
		line.AppointmentTime, line.DurationMinutes, string(line.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// LinkVisitToPatient attaches all manually-named lines of a (name, date)
// visit to a patient record; returns the number of rows touched.
func (r *Repository) LinkVisitToPatient(ctx context.Context, patientName string, date time.Time, patientID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE ledger_entries
		SET patient_id = $3
		WHERE patient_id IS NULL AND patient_name = $1 AND visit_date = $2`,
		patientName, pgtype.Date{Time: date, Valid: true}, patientID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes one line.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// DeleteByIDs removes a batch of lines.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = ANY($1)`, ids)
	return err
}
