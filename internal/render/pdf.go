// Package render produces downloadable ticket documents
package render

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// ErrMissingCode is returned when a ticket without validation code is rendered
var ErrMissingCode = errors.New("ticket has no validation code")

// BusLeg describes one shuttle ride printed on a ticket
type BusLeg struct {
	Location  string
	DepartsAt time.Time
}

// TicketDocument is the content of a printable ticket
type TicketDocument struct {
	TicketID       int64
	EventName      string
	EventStartsAt  time.Time
	Location       string
	Email          string
	TableName      string
	Restrictions   string
	ValidationCode string
	Price          decimal.Decimal
	BusGo          *BusLeg
	BusCome        *BusLeg
}

// TicketRenderer renders a ticket as PDF
type TicketRenderer interface {
	RenderTicketPDF(doc TicketDocument) ([]byte, error)
}

// PDFRenderer implements TicketRenderer with fpdf
type PDFRenderer struct {
	qrSize int
}

// NewPDFRenderer creates a PDFRenderer
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{qrSize: 512}
}

// RenderTicketPDF lays out an A5 ticket with its QR code
func (r *PDFRenderer) RenderTicketPDF(doc TicketDocument) ([]byte, error) {
	if doc.ValidationCode == "" {
		return nil, ErrMissingCode
	}

	qr, err := qrcode.Encode(doc.ValidationCode, qrcode.Medium, r.qrSize)
	if err != nil {
		return nil, fmt.Errorf("generate qr code: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(doc.EventName), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(doc.EventName), "", "C", false)
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, doc.EventStartsAt.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	if doc.Location != "" {
		pdf.CellFormat(0, 6, tr(doc.Location), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	imageName := fmt.Sprintf("qr-%d", doc.TicketID)
	pdf.RegisterImageOptionsReader(imageName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	pageWidth, _ := pdf.GetPageSize()
	const qrWidth = 70.0
	pdf.ImageOptions(imageName, (pageWidth-qrWidth)/2, pdf.GetY(), qrWidth, qrWidth, true,
		fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Courier", "B", 14)
	pdf.CellFormat(0, 8, doc.ValidationCode, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		if value == "" {
			return
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(35, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(value), "", "L", false)
	}
	line("Ticket", fmt.Sprintf("#%d", doc.TicketID))
	line("Attendee", doc.Email)
	line("Table", doc.TableName)
	line("Dietary notes", doc.Restrictions)
	line("Price", doc.Price.StringFixed(2)+" EUR")
	if doc.BusGo != nil {
		line("Bus (outbound)", busLine(doc.BusGo))
	}
	if doc.BusCome != nil {
		line("Bus (return)", busLine(doc.BusCome))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func busLine(leg *BusLeg) string {
	if leg.DepartsAt.IsZero() {
		return leg.Location
	}
	return fmt.Sprintf("%s, %s", leg.Location, leg.DepartsAt.Format("02/01 15:04"))
}
