package plan

import "time"

type planDTO struct {
	ID             int64  `json:"id"`
	BranchID       int64  `json:"branch_id"`
	PatientID      int64  `json:"patient_id"`
	DoctorID       *int64 `json:"doctor_id,omitempty"`
	Label          string `json:"label"`
	TotalAmount    string `json:"total_amount"`
	DepositAmount  string `json:"deposit_amount"`
	MonthlyAmount  string `json:"monthly_amount"`
	DurationMonths int    `json:"duration_months"`
	StartDate      string `json:"start_date"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

func planResponse(p Plan) planDTO {
	return planDTO{
		ID:             p.ID,
		BranchID:       p.BranchID,
		PatientID:      p.PatientID,
		DoctorID:       p.DoctorID,
		Label:          p.Label,
		TotalAmount:    p.TotalAmount.StringFixed(2),
		DepositAmount:  p.DepositAmount.StringFixed(2),
		MonthlyAmount:  p.MonthlyAmount.StringFixed(2),
		DurationMonths: p.DurationMonths,
		StartDate:      p.StartDate.Format(dateLayout),
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

type progressDTO struct {
	Plan              planDTO `json:"plan"`
	PaidTotal         string  `json:"paid_total"`
	RemainingTotal    string  `json:"remaining_total"`
	InstallmentsPaid  int     `json:"installments_paid"`
	InstallmentsTotal int     `json:"installments_total"`
	OverdueCount      int     `json:"overdue_count"`
}

func progressResponse(p Progress) progressDTO {
	return progressDTO{
		Plan:              planResponse(p.Plan),
		PaidTotal:         p.PaidTotal.StringFixed(2),
		RemainingTotal:    p.RemainingTotal.StringFixed(2),
		InstallmentsPaid:  p.InstallmentsPaid,
		InstallmentsTotal: p.InstallmentsTotal,
		OverdueCount:      p.OverdueCount,
	}
}
