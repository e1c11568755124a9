// Package receipt renders payment receipts as PDF documents and stores them
// in S3-compatible object storage. Receipts are generated after a payment is
// confirmed; failures here never affect the payment flow.
package receipt

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/catalystschool/checkout/app/models"
)

// Data carries everything the rendered receipt shows.
type Data struct {
	ReceiptNumber string
	IssuedAt      time.Time

	SchoolName string
	SchoolID   string
	Address    string
	City       string
	State      string
	Pincode    string
	GSTNumber  string

	PlanName     string
	StudentCount int
	BillingCycle string
	Amount       float64
	Currency     string

	ProviderOrderID   string
	ProviderPaymentID string
	PaidAt            time.Time
}

// FromRecords builds receipt data from the stored subscription and
// transaction rows.
func FromRecords(schoolName string, sub *models.Subscription, txn *models.PaymentTransaction) Data {
	paidAt := time.Now()
	if txn.PaidAt != nil {
		paidAt = *txn.PaidAt
	}
	return Data{
		ReceiptNumber:     fmt.Sprintf("RCP-%s-%d", paidAt.Format("20060102"), txn.ID),
		IssuedAt:          paidAt,
		SchoolName:        schoolName,
		SchoolID:          sub.SchoolID,
		Address:           sub.Address,
		City:              sub.City,
		State:             sub.State,
		Pincode:           sub.Pincode,
		GSTNumber:         sub.GSTNumber,
		PlanName:          sub.PlanName,
		StudentCount:      sub.StudentCount,
		BillingCycle:      sub.BillingCycle,
		Amount:            txn.Amount,
		Currency:          txn.Currency,
		ProviderOrderID:   txn.ProviderOrderID,
		ProviderPaymentID: txn.ProviderPaymentID,
		PaidAt:            paidAt,
	}
}

// ObjectKey returns the storage key for a receipt: receipts/YYYY/MM/<order>.pdf
func ObjectKey(providerOrderID string, issuedAt time.Time) string {
	return fmt.Sprintf("receipts/%04d/%02d/%s.pdf", issuedAt.Year(), int(issuedAt.Month()), providerOrderID)
}

// Generate renders the receipt as a single-page PDF.
func Generate(data Data) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt "+data.ReceiptNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Catalyst School")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, "Payment Receipt")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	writeRow(pdf, "Receipt No", data.ReceiptNumber)
	writeRow(pdf, "Date", data.IssuedAt.Format("02 Jan 2006"))
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Billed To")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	writeRow(pdf, "School", data.SchoolName)
	if addr := formatAddress(data); addr != "" {
		writeRow(pdf, "Address", addr)
	}
	if data.GSTNumber != "" {
		writeRow(pdf, "GSTIN", data.GSTNumber)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Subscription")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	writeRow(pdf, "Plan", data.PlanName)
	writeRow(pdf, "Students", fmt.Sprintf("%d", data.StudentCount))
	writeRow(pdf, "Billing Cycle", titleCase(data.BillingCycle))
	writeRow(pdf, "Order ID", data.ProviderOrderID)
	writeRow(pdf, "Payment ID", data.ProviderPaymentID)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	writeRow(pdf, "Amount Paid", fmt.Sprintf("%s %.2f", data.Currency, data.Amount))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Paid on %s. This is a computer generated receipt.", data.PaidAt.Format("02 Jan 2006 15:04 MST")))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(40, 6, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatAddress(data Data) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{data.Address, data.City, data.State, data.Pincode} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
