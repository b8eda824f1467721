package patients

import (
	"errors"
	"time"
)

// Patient is a registered patient record. Ledger lines created before
// registration reference patients by typed name only; LinkVisitToPatient
// in the ledger package attaches them once this record exists.
type Patient struct {
	ID             int64
	BranchID       int64
	FullName       string
	Phone          string
	Gender         string
	DateOfBirth    *time.Time
	Address        string
	Note           string
	AccessCodeHash string
	CreatedAt      time.Time
}

var ErrPatientNotFound = errors.New("patients: not found")
