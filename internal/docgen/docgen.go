package docgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/plan"
)

// DocKind distinguishes the two printable documents the desk produces.
type DocKind string

const (
	KindQuotation        DocKind = "quotation"
	KindPaymentAgreement DocKind = "payment_agreement"
)

// Document is the print-ready model. Layout and PDF rendering happen
// outside this service; the amounts here are already formatted strings.
type Document struct {
	Number      string
	Kind        DocKind
	IssuedAt    time.Time
	PatientName string
	Lines       []DocLine
	TotalUSD    string
	TotalKHR    string
	Terms       []string
}

// DocLine is one row of the document body.
type DocLine struct {
	Description string
	Quantity    int
	UnitPrice   string
	Total       string
}

// Builder formats documents with locale-aware number grouping. KHR totals
// are derived with the configured exchange rate.
type Builder struct {
	printer *message.Printer
	rate    decimal.Decimal
}

// NewBuilder constructs a Builder with the given KHR/USD rate.
func NewBuilder(rate decimal.Decimal) *Builder {
	return &Builder{printer: message.NewPrinter(language.English), rate: rate}
}

// number generates a short document reference like Q-7F3A2B1C.
func number(kind DocKind) string {
	prefix := "Q"
	if kind == KindPaymentAgreement {
		prefix = "PA"
	}
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

func (b *Builder) usd(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return b.printer.Sprintf("$%.2f", f)
}

func (b *Builder) khr(d decimal.Decimal) string {
	riel := d.Mul(b.rate).Round(0)
	f, _ := riel.Float64()
	return b.printer.Sprintf("%.0f KHR", f)
}

// Quotation builds a quotation from a set of ledger lines.
func (b *Builder) Quotation(patientName string, lines []ledger.Line, issuedAt time.Time) Document {
	doc := Document{
		Number:      number(KindQuotation),
		Kind:        KindQuotation,
		IssuedAt:    issuedAt,
		PatientName: patientName,
	}
	total := decimal.Zero
	for _, l := range lines {
		doc.Lines = append(doc.Lines, DocLine{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   b.usd(l.UnitPrice),
			Total:       b.usd(l.TotalPrice),
		})
		total = total.Add(l.TotalPrice)
	}
	doc.TotalUSD = b.usd(total)
	doc.TotalKHR = b.khr(total)
	doc.Terms = []string{"Quotation valid for 30 days.", "Prices include standard materials."}
	return doc
}

// PaymentAgreement builds the installment agreement for a plan.
func (b *Builder) PaymentAgreement(patientName string, p plan.Plan, issuedAt time.Time) Document {
	doc := Document{
		Number:      number(KindPaymentAgreement),
		Kind:        KindPaymentAgreement,
		IssuedAt:    issuedAt,
		PatientName: patientName,
	}
	if p.DepositAmount.IsPositive() {
		doc.Lines = append(doc.Lines, DocLine{
			Description: "Deposit",
			Quantity:    1,
			UnitPrice:   b.usd(p.DepositAmount),
			Total:       b.usd(p.DepositAmount),
		})
	}
	amounts := plan.InstallmentAmounts(p.MonthlyAmount, p.DurationMonths)
	for i, amount := range amounts {
		doc.Lines = append(doc.Lines, DocLine{
			Description: fmt.Sprintf("Month %d/%d", i+1, p.DurationMonths),
			Quantity:    1,
			UnitPrice:   b.usd(amount),
			Total:       b.usd(amount),
		})
	}
	doc.TotalUSD = b.usd(p.TotalAmount)
	doc.TotalKHR = b.khr(p.TotalAmount)
	doc.Terms = []string{
		fmt.Sprintf("Installments due monthly starting %s.", p.StartDate.AddDate(0, 1, 0).Format("2 January 2006")),
		"Missed installments remain payable; the treatment schedule may pause.",
	}
	return doc
}
