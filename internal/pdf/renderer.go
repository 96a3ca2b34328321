// Package pdf renders the invoice document. The layout is a single
// fixed design (header band, supplier/client cards, item table, totals
// box, payment details) but the item table paginates, so long item
// lists continue on follow-up pages instead of overflowing.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/At4lian/editra/internal/config"
	"github.com/At4lian/editra/internal/models"
)

// IRenderer produces the binary PDF for an invoice.
type IRenderer interface {
	Render(inv *models.Invoice) ([]byte, error)
}

const (
	pageLeft      = 15.0
	pageRight     = 15.0
	contentWidth  = 180.0 // A4 width 210 minus margins
	tableBreakY   = 262.0 // Start a new page when a row would pass this
	rowHeight     = 7.0
	dateLayout    = "02.01.2006"
	accentR       = 38
	accentG       = 38
	accentB       = 38
)

type renderer struct {
	cfg *config.Config
}

// NewRenderer creates the invoice PDF renderer.
func NewRenderer(cfg *config.Config) IRenderer {
	return &renderer{cfg: cfg}
}

func (r *renderer) Render(inv *models.Invoice) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageLeft, 12, pageRight)
	doc.SetAutoPageBreak(false, 0)
	doc.AliasNbPages("")
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont("Helvetica", "", 8)
		doc.SetTextColor(120, 120, 120)
		doc.CellFormat(contentWidth, 5,
			fmt.Sprintf("%s  |  %s  |  page %d/{nb}", r.cfg.SupplierName, inv.Name, doc.PageNo()),
			"", 0, "C", false, 0, "")
	})

	doc.AddPage()
	r.drawHeader(doc, inv)
	r.drawParties(doc, inv)
	withTracked := inv.Client.ShowTrackedTime
	r.drawTableHeader(doc, withTracked)
	for _, item := range inv.Items {
		if doc.GetY()+rowHeight > tableBreakY {
			doc.AddPage()
			r.drawHeader(doc, inv)
			r.drawTableHeader(doc, withTracked)
		}
		r.drawRow(doc, &item, withTracked)
	}
	r.drawTotals(doc, inv)
	r.drawPaymentDetails(doc, inv)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output failed: %w", err)
	}
	return buf.Bytes(), nil
}

// drawHeader draws the dark band with the studio name and the invoice
// name. Repeated on every page.
func (r *renderer) drawHeader(doc *fpdf.Fpdf, inv *models.Invoice) {
	doc.SetFillColor(accentR, accentG, accentB)
	doc.Rect(pageLeft, 12, contentWidth, 16, "F")
	doc.SetTextColor(255, 255, 255)
	doc.SetXY(pageLeft+4, 15)
	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(100, 10, r.cfg.SupplierName, "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(contentWidth-108, 10, inv.Name, "", 0, "R", false, 0, "")
	doc.SetTextColor(0, 0, 0)
	doc.SetY(32)
}

// drawParties draws the supplier and client info cards side by side.
func (r *renderer) drawParties(doc *fpdf.Fpdf, inv *models.Invoice) {
	cardWidth := contentWidth/2 - 4
	top := doc.GetY()

	supplier := []string{
		r.cfg.SupplierName,
		r.cfg.SupplierStreet,
		fmt.Sprintf("%s %s", r.cfg.SupplierZip, r.cfg.SupplierCity),
		r.cfg.SupplierCountry,
	}
	if r.cfg.SupplierCompanyID != "" {
		supplier = append(supplier, "ICO: "+r.cfg.SupplierCompanyID)
	}
	if r.cfg.SupplierTaxID != "" {
		supplier = append(supplier, "DIC: "+r.cfg.SupplierTaxID)
	}

	client := []string{
		inv.Client.Name,
		inv.Client.Street,
		fmt.Sprintf("%s %s", inv.Client.Zip, inv.Client.City),
		inv.Client.Country,
	}
	if inv.Client.CompanyID != "" {
		client = append(client, "ICO: "+inv.Client.CompanyID)
	}
	if inv.Client.TaxID != "" {
		client = append(client, "DIC: "+inv.Client.TaxID)
	}

	r.drawCard(doc, pageLeft, top, cardWidth, "Supplier", supplier)
	r.drawCard(doc, pageLeft+cardWidth+8, top, cardWidth, "Bill to", client)
	doc.SetY(top + 44)
}

func (r *renderer) drawCard(doc *fpdf.Fpdf, x, y, w float64, title string, lines []string) {
	doc.SetDrawColor(200, 200, 200)
	doc.Rect(x, y, w, 40, "D")
	doc.SetXY(x+3, y+2)
	doc.SetFont("Helvetica", "B", 9)
	doc.SetTextColor(120, 120, 120)
	doc.CellFormat(w-6, 5, title, "", 2, "L", false, 0, "")
	doc.SetTextColor(0, 0, 0)
	doc.SetFont("Helvetica", "", 9)
	for i, line := range lines {
		if line == "" {
			continue
		}
		style := ""
		if i == 0 {
			style = "B"
		}
		doc.SetFont("Helvetica", style, 9)
		doc.SetX(x + 3)
		doc.CellFormat(w-6, 5, line, "", 2, "L", false, 0, "")
	}
}

func (r *renderer) columnWidths(withTracked bool) (desc, rate, tracked, amount float64) {
	if withTracked {
		return 85, 30, 30, 35
	}
	return 110, 35, 0, 35
}

func (r *renderer) drawTableHeader(doc *fpdf.Fpdf, withTracked bool) {
	desc, rate, tracked, amount := r.columnWidths(withTracked)
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(235, 235, 235)
	doc.SetX(pageLeft)
	doc.CellFormat(desc, rowHeight, "Item", "B", 0, "L", true, 0, "")
	doc.CellFormat(rate, rowHeight, "Hourly rate", "B", 0, "R", true, 0, "")
	if withTracked {
		doc.CellFormat(tracked, rowHeight, "Tracked (h)", "B", 0, "R", true, 0, "")
	}
	doc.CellFormat(amount, rowHeight, "Amount", "B", 1, "R", true, 0, "")
	doc.SetFont("Helvetica", "", 9)
}

func (r *renderer) drawRow(doc *fpdf.Fpdf, item *models.InvoiceLineItem, withTracked bool) {
	desc, rate, tracked, amount := r.columnWidths(withTracked)
	doc.SetX(pageLeft)
	doc.CellFormat(desc, rowHeight, item.Description, "", 0, "L", false, 0, "")
	doc.CellFormat(rate, rowHeight, r.money(item.HourlyRate), "", 0, "R", false, 0, "")
	if withTracked {
		trackedStr := "-"
		if item.TrackedHours > 0 {
			trackedStr = fmt.Sprintf("%.2f", item.TrackedHours)
		}
		doc.CellFormat(tracked, rowHeight, trackedStr, "", 0, "R", false, 0, "")
	}
	doc.CellFormat(amount, rowHeight, r.money(item.TotalPrice), "", 1, "R", false, 0, "")
}

func (r *renderer) drawTotals(doc *fpdf.Fpdf, inv *models.Invoice) {
	if doc.GetY()+20 > tableBreakY {
		doc.AddPage()
		r.drawHeader(doc, inv)
	}
	doc.Ln(4)
	boxWidth := 70.0
	doc.SetX(pageLeft + contentWidth - boxWidth)
	doc.SetFillColor(accentR, accentG, accentB)
	doc.SetTextColor(255, 255, 255)
	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(boxWidth, 10, "Total  "+r.money(inv.Total)+" "+inv.CurrencyCode, "", 1, "C", true, 0, "")
	doc.SetTextColor(0, 0, 0)
}

func (r *renderer) drawPaymentDetails(doc *fpdf.Fpdf, inv *models.Invoice) {
	if doc.GetY()+30 > tableBreakY {
		doc.AddPage()
		r.drawHeader(doc, inv)
	}
	doc.Ln(6)
	doc.SetFont("Helvetica", "B", 9)
	doc.SetX(pageLeft)
	doc.CellFormat(contentWidth, 5, "Payment details", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	lines := [][2]string{
		{"Bank account", r.cfg.SupplierBankAccount},
		{"Variable symbol", fmt.Sprintf("%d", inv.Number)},
		{"Issue date", inv.IssueDate.Format(dateLayout)},
		{"Due date", inv.DueDate.Format(dateLayout)},
	}
	for _, line := range lines {
		if line[1] == "" {
			continue
		}
		doc.SetX(pageLeft)
		doc.CellFormat(40, 5, line[0], "", 0, "L", false, 0, "")
		doc.CellFormat(80, 5, line[1], "", 1, "L", false, 0, "")
	}
}

func (r *renderer) money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
