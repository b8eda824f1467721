package patients

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dentara-clinic/dentara/internal/shared"
)

// RepositoryPort abstracts patient persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, p Patient) (Patient, error)
	GetByID(ctx context.Context, id int64) (Patient, error)
	GetByPhone(ctx context.Context, phone string) (Patient, error)
	Search(ctx context.Context, branchID int64, term string, limit int) ([]Patient, error)
	Update(ctx context.Context, p Patient) error
	SetAccessCodeHash(ctx context.Context, id int64, hash string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles patient registration and lookup.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds the Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries registration input. Name and phone are required on
// this path; anonymous walk-ins exist only as typed names on ledger lines.
type CreateInput struct {
	BranchID    int64
	FullName    string
	Phone       string
	Gender      string
	DateOfBirth *time.Time
	Address     string
	Note        string
}

// Create registers a patient.
func (s *Service) Create(ctx context.Context, input CreateInput) (Patient, error) {
	if input.BranchID == 0 {
		return Patient{}, fmt.Errorf("%w: %s", shared.ErrValidation, shared.ErrBranchRequired)
	}
	name := strings.TrimSpace(input.FullName)
	phone := strings.TrimSpace(input.Phone)
	if name == "" || phone == "" {
		return Patient{}, fmt.Errorf("%w: name and phone are required", shared.ErrValidation)
	}

	created, err := s.repo.Insert(ctx, Patient{
		BranchID:    input.BranchID,
		FullName:    name,
		Phone:       phone,
		Gender:      input.Gender,
		DateOfBirth: input.DateOfBirth,
		Address:     input.Address,
		Note:        input.Note,
	})
	if err != nil {
		return Patient{}, fmt.Errorf("patients: insert: %w", err)
	}
	s.record(ctx, "patients:create", created.ID, map[string]any{"name": name})
	return created, nil
}

// Get fetches one patient.
func (s *Service) Get(ctx context.Context, id int64) (Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Search finds patients by name or phone fragment.
func (s *Service) Search(ctx context.Context, branchID int64, term string, limit int) ([]Patient, error) {
	if branchID == 0 {
		return nil, shared.ErrBranchRequired
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.Search(ctx, branchID, strings.TrimSpace(term), limit)
}

// Update rewrites a patient's editable fields.
func (s *Service) Update(ctx context.Context, p Patient) (Patient, error) {
	if strings.TrimSpace(p.FullName) == "" {
		return Patient{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return Patient{}, err
	}
	p.BranchID = current.BranchID
	p.AccessCodeHash = current.AccessCodeHash
	p.CreatedAt = current.CreatedAt
	if err := s.repo.Update(ctx, p); err != nil {
		return Patient{}, fmt.Errorf("patients: update: %w", err)
	}
	s.record(ctx, "patients:update", p.ID, nil)
	return p, nil
}

// SetAccessCode hashes and stores a portal access code for the patient.
func (s *Service) SetAccessCode(ctx context.Context, id int64, code string) error {
	if len(code) < 6 {
		return fmt.Errorf("%w: access code must be at least 6 characters", shared.ErrValidation)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("patients: hash access code: %w", err)
	}
	if err := s.repo.SetAccessCodeHash(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("patients: store access code: %w", err)
	}
	s.record(ctx, "patients:access_code", id, nil)
	return nil
}

// VerifyAccess checks a phone plus access code pair for the portal.
func (s *Service) VerifyAccess(ctx context.Context, phone, code string) (Patient, error) {
	p, err := s.repo.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		return Patient{}, err
	}
	if p.AccessCodeHash == "" {
		return Patient{}, shared.ErrForbidden
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.AccessCodeHash), []byte(code)); err != nil {
		return Patient{}, shared.ErrForbidden
	}
	return p, nil
}

func (s *Service) record(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "patient",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
