package ledger

import "time"

// LineDTO is the JSON projection of a ledger line. Money travels as strings
// to keep the two-decimal representation exact.
type LineDTO struct {
	ID              int64  `json:"id"`
	BranchID        int64  `json:"branch_id"`
	PatientID       *int64 `json:"patient_id,omitempty"`
	PatientName     string `json:"patient_name,omitempty"`
	DoctorID        *int64 `json:"doctor_id,omitempty"`
	DoctorName      string `json:"doctor_name,omitempty"`
	CashierID       *int64 `json:"cashier_id,omitempty"`
	CashierName     string `json:"cashier_name,omitempty"`
	TreatmentID     *int64 `json:"treatment_id,omitempty"`
	TreatmentName   string `json:"treatment_name,omitempty"`
	InventoryID     *int64 `json:"inventory_id,omitempty"`
	InventoryName   string `json:"inventory_name,omitempty"`
	PlanID          *int64 `json:"plan_id,omitempty"`
	ItemType        string `json:"item_type"`
	Description     string `json:"description,omitempty"`
	UnitPrice       string `json:"unit_price"`
	Quantity        int    `json:"quantity"`
	TotalPrice      string `json:"total_price"`
	AmountPaid      string `json:"amount_paid"`
	AmountRemaining string `json:"amount_remaining"`
	PaidABA         string `json:"paid_aba"`
	PaidCashUSD     string `json:"paid_cash_usd"`
	PaidCashKHR     string `json:"paid_cash_khr"`
	AppliedRate     string `json:"applied_rate,omitempty"`
	Date            string `json:"date"`
	AppointmentTime string `json:"appointment_time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Status          string `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func lineResponse(l Line) LineDTO {
	dto := LineDTO{
		ID:              l.ID,
		BranchID:        l.BranchID,
		PatientID:       l.PatientID,
		PatientName:     l.PatientName,
		DoctorID:        l.DoctorID,
		DoctorName:      l.DoctorName,
		CashierID:       l.CashierID,
		CashierName:     l.CashierName,
		TreatmentID:     l.TreatmentID,
		TreatmentName:   l.TreatmentName,
		InventoryID:     l.InventoryID,
		InventoryName:   l.InventoryName,
		PlanID:          l.PlanID,
		ItemType:        string(l.ItemType),
		Description:     l.Description,
		UnitPrice:       l.UnitPrice.StringFixed(2),
		Quantity:        l.Quantity,
		TotalPrice:      l.TotalPrice.StringFixed(2),
		AmountPaid:      l.AmountPaid.StringFixed(2),
		AmountRemaining: l.AmountRemaining.StringFixed(2),
		PaidABA:         l.PaidABA.StringFixed(2),
		PaidCashUSD:     l.PaidCashUSD.StringFixed(2),
		PaidCashKHR:     l.PaidCashKHR.StringFixed(2),
		Date:            l.Date.Format(dateLayout),
		AppointmentTime: l.AppointmentTime,
		DurationMinutes: l.DurationMinutes,
		Status:          string(l.Status),
		CreatedAt:       l.CreatedAt,
	}
	if l.AppliedRate.IsPositive() {
		dto.AppliedRate = l.AppliedRate.String()
	}
	return dto
}

func linesResponse(lines []Line) map[string]any {
	dtos := make([]LineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, lineResponse(l))
	}
	return map[string]any{"lines": dtos}
}

// VisitDTO is the JSON projection of a derived visit.
type VisitDTO struct {
	Key            string    `json:"key"`
	PatientID      *int64    `json:"patient_id,omitempty"`
	PatientName    string    `json:"patient_name,omitempty"`
	Date           string    `json:"date"`
	TotalVal       string    `json:"total"`
	TotalPaid      string    `json:"paid"`
	TotalRemaining string    `json:"remaining"`
	Lines          []LineDTO `json:"lines"`
}

func visitsResponse(visits []Visit) []VisitDTO {
	dtos := make([]VisitDTO, 0, len(visits))
	for _, v := range visits {
		dto := VisitDTO{
			Key:            v.Key,
			PatientID:      v.PatientID,
			PatientName:    v.PatientName,
			Date:           v.Date.Format(dateLayout),
			TotalVal:       v.TotalVal.StringFixed(2),
			TotalPaid:      v.TotalPaid.StringFixed(2),
			TotalRemaining: v.TotalRemaining.StringFixed(2),
		}
		for _, l := range v.Lines {
			dto.Lines = append(dto.Lines, lineResponse(l))
		}
		dtos = append(dtos, dto)
	}
	return dtos
}
