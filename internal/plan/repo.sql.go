package plan

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const planColumns = `id, branch_id, patient_id, doctor_id, label, total_amount,
	deposit_amount, monthly_amount, duration_months, start_date, status, created_at`

func scanPlan(row pgx.Row) (Plan, error) {
	var (
		p                       Plan
		doctorID                pgtype.Int8
		total, deposit, monthly pgtype.Numeric
		status                  string
	)
	err := row.Scan(&p.ID, &p.BranchID, &p.PatientID, &doctorID, &p.Label,
		&total, &deposit, &monthly, &p.DurationMonths, &p.StartDate, &status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, err
	}
	if doctorID.Valid {
		v := doctorID.Int64
		p.DoctorID = &v
	}
	p.TotalAmount = decimalFromNumeric(total)
	p.DepositAmount = decimalFromNumeric(deposit)
	p.MonthlyAmount = decimalFromNumeric(monthly)
	p.Status = Status(status)
	return p, nil
}

// Insert persists a new plan.
func (r *Repository) Insert(ctx context.Context, p Plan) (Plan, error) {
	var doctorID pgtype.Int8
	if p.DoctorID != nil {
		doctorID = pgtype.Int8{Int64: *p.DoctorID, Valid: true}
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO payment_plans
		(branch_id, patient_id, doctor_id, label, total_amount, deposit_amount,
		 monthly_amount, duration_months, start_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		p.BranchID, p.PatientID, doctorID, p.Label,
		numericFromDecimal(p.TotalAmount), numericFromDecimal(p.DepositAmount),
		numericFromDecimal(p.MonthlyAmount), p.DurationMonths, p.StartDate, string(p.Status))
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// GetByID fetches one plan.
func (r *Repository) GetByID(ctx context.Context, id int64) (Plan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE id = $1`, id)
	return scanPlan(row)
}

// ListByPatient lists a patient's plans, newest first. Empty status means
// no filter.
func (r *Repository) ListByPatient(ctx context.Context, patientID int64, status Status) ([]Plan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE patient_id = $1`
	args := []any{patientID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	return r.queryPlans(ctx, query, args...)
}

// ListByStatus lists every plan in a given status.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Plan, error) {
	return r.queryPlans(ctx, `SELECT `+planColumns+` FROM payment_plans WHERE status = $1 ORDER BY id`, string(status))
}

func (r *Repository) queryPlans(ctx context.Context, query string, args ...any) ([]Plan, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// UpdateStatus writes the plan's status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_plans SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}
