package patients

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists patients in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const patientColumns = `id, branch_id, full_name, phone, gender, date_of_birth,
	address, note, COALESCE(access_code_hash, ''), created_at`

func scanPatient(row pgx.Row) (Patient, error) {
	var (
		p   Patient
		dob pgtype.Date
	)
	err := row.Scan(&p.ID, &p.BranchID, &p.FullName, &p.Phone, &p.Gender, &dob,
		&p.Address, &p.Note, &p.AccessCodeHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Patient{}, ErrPatientNotFound
		}
		return Patient{}, err
	}
	if dob.Valid {
		d := dob.Time
		p.DateOfBirth = &d
	}
	return p, nil
}

func dateParam(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

// Insert persists a new patient.
func (r *Repository) Insert(ctx context.Context, p Patient) (Patient, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO patients
		(branch_id, full_name, phone, gender, date_of_birth, address, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		p.BranchID, p.FullName, p.Phone, p.Gender, dateParam(p.DateOfBirth), p.Address, p.Note)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Patient{}, err
	}
	return p, nil
}

// GetByID fetches one patient.
func (r *Repository) GetByID(ctx context.Context, id int64) (Patient, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

// GetByPhone fetches one patient by exact phone match.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (Patient, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE phone = $1`, phone)
	return scanPatient(row)
}

// Search matches a name or phone fragment within a branch.
func (r *Repository) Search(ctx context.Context, branchID int64, term string, limit int) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientColumns+` FROM patients
		WHERE branch_id = $1 AND (full_name ILIKE '%' || $2 || '%' OR phone LIKE $2 || '%')
		ORDER BY full_name LIMIT $3`, branchID, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patients := make([]Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// Update rewrites the editable fields.
func (r *Repository) Update(ctx context.Context, p Patient) error {
	tag, err := r.pool.Exec(ctx, `UPDATE patients SET
		full_name = $2, phone = $3, gender = $4, date_of_birth = $5, address = $6, note = $7
		WHERE id = $1`,
		p.ID, p.FullName, p.Phone, p.Gender, dateParam(p.DateOfBirth), p.Address, p.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// SetAccessCodeHash stores the portal access code hash.
func (r *Repository) SetAccessCodeHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE patients SET access_code_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}
