package docgen

import "time"

type docLineDTO struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

type documentDTO struct {
	Number      string       `json:"number"`
	Kind        DocKind      `json:"kind"`
	IssuedAt    time.Time    `json:"issued_at"`
	PatientName string       `json:"patient_name"`
	Lines       []docLineDTO `json:"lines"`
	TotalUSD    string       `json:"total_usd"`
	TotalKHR    string       `json:"total_khr"`
	Terms       []string     `json:"terms"`
}

func documentResponse(d Document) documentDTO {
	lines := make([]docLineDTO, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, docLineDTO{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Total:       l.Total,
		})
	}
	return documentDTO{
		Number:      d.Number,
		Kind:        d.Kind,
		IssuedAt:    d.IssuedAt,
		PatientName: d.PatientName,
		Lines:       lines,
		TotalUSD:    d.TotalUSD,
		TotalKHR:    d.TotalKHR,
		Terms:       d.Terms,
	}
}
