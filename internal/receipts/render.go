package receipts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/unipet/billing-engine/internal/models"
)

var (
	colorPrimary   = [3]int{0, 122, 140}
	colorTextDark  = [3]int{44, 62, 80}
	colorTextMuted = [3]int{127, 140, 141}
	colorHeaderBg  = [3]int{232, 244, 246}
	colorGridLine  = [3]int{220, 220, 220}
)

// Renderer turns a stored receipt row into a document.
type Renderer interface {
	Render(r *models.PaymentReceipt) ([]byte, error)
}

type Company struct {
	Name         string
	TaxID        string
	SupportEmail string
}

// PDFRenderer lays the receipt out on one A4 page. Output depends only on
// the row, so a regenerated document matches the original.
type PDFRenderer struct {
	company  Company
	compress bool
	location *time.Location
}

func NewPDFRenderer(company Company) *PDFRenderer {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	return &PDFRenderer{company: company, compress: true, location: loc}
}

func (p *PDFRenderer) Render(r *models.PaymentReceipt) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetCompression(p.compress)
	pdf.SetCreationDate(r.CreatedAt)
	pdf.SetModificationDate(r.CreatedAt)
	pdf.SetTitle("Comprovante "+r.ReceiptNumber, true)
	pdf.SetAuthor(p.company.Name, true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	p.writeHeader(pdf, tr, r)
	p.writeClient(pdf, tr, r)
	if err := p.writePets(pdf, tr, r); err != nil {
		return nil, err
	}
	p.writeTotals(pdf, tr, r)
	p.writeGateway(pdf, tr, r)
	p.writeFooter(pdf, tr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *PDFRenderer) writeHeader(pdf *fpdf.Fpdf, tr func(string) string, r *models.PaymentReceipt) {
	pageWidth, _ := pdf.GetPageSize()
	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, 0, pageWidth, 6, "F")

	pdf.SetY(16)
	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 10, tr(p.company.Name), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	if p.company.TaxID != "" {
		pdf.CellFormat(0, 5, tr("CNPJ: "+p.company.TaxID), "", 1, "L", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, tr("Comprovante de Pagamento"), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr("Nº do comprovante: "+r.ReceiptNumber), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Emitido em: "+r.CreatedAt.In(p.location).Format("02/01/2006 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (p *PDFRenderer) section(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(colorHeaderBg[0], colorHeaderBg[1], colorHeaderBg[2])
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", true, 0, "")
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.SetFont("Arial", "", 10)
	pdf.Ln(1)
}

func (p *PDFRenderer) field(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	if value == "" {
		return
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, tr(label), "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

func (p *PDFRenderer) writeClient(pdf *fpdf.Fpdf, tr func(string) string, r *models.PaymentReceipt) {
	p.section(pdf, tr, "Dados do cliente")
	p.field(pdf, tr, "Nome:", r.ClientName)
	p.field(pdf, tr, "E-mail:", r.ClientEmail)
	p.field(pdf, tr, "CPF/CNPJ:", formatTaxID(r.ClientTaxID))
	pdf.Ln(3)
}

func (p *PDFRenderer) writePets(pdf *fpdf.Fpdf, tr func(string) string, r *models.PaymentReceipt) error {
	var lines []models.ReceiptPetLine
	if len(r.PetLines) > 0 {
		if err := json.Unmarshal(r.PetLines, &lines); err != nil {
			return fmt.Errorf("invalid pet lines on receipt %s: %w", r.ReceiptNumber, err)
		}
	}
	if len(lines) == 0 && r.PetName != "" {
		lines = []models.ReceiptPetLine{{Name: r.PetName, PlanName: r.PlanName, BaseAmount: r.PaymentAmount, Amount: r.PaymentAmount}}
	}

	p.section(pdf, tr, "Pets e plano contratado")
	widths := []float64{50, 45, 25, 25, 25}
	headers := []string{"Pet", "Plano", "Valor", "Desconto", "Total"}

	pdf.SetFont("Arial", "B", 9)
	pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
	for i, h := range headers {
		align := "L"
		if i >= 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(h), "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, l := range lines {
		plan := l.PlanName
		if plan == "" {
			plan = r.PlanName
		}
		discount := "-"
		if l.DiscountPercent > 0 {
			discount = fmt.Sprintf("%d%%", l.DiscountPercent)
		}
		pdf.CellFormat(widths[0], 7, tr(l.Name), "B", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(plan), "B", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, tr(formatBRL(l.BaseAmount)), "B", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, discount, "B", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, tr(formatBRL(l.Amount)), "B", 1, "R", false, 0, "")
	}
	pdf.Ln(3)
	return nil
}

func (p *PDFRenderer) writeTotals(pdf *fpdf.Fpdf, tr func(string) string, r *models.PaymentReceipt) {
	p.section(pdf, tr, "Pagamento")
	p.field(pdf, tr, "Valor pago:", formatBRL(r.PaymentAmount))
	p.field(pdf, tr, "Data do pagamento:", r.PaymentDate.In(p.location).Format("02/01/2006 15:04"))
	p.field(pdf, tr, "Forma de pagamento:", methodLabel(r.PaymentMethod))
	if r.PaymentMethod == models.PaymentCreditCard {
		installments := max(1, r.Installments)
		p.field(pdf, tr, "Parcelas:", fmt.Sprintf("%dx de %s", installments, formatBRL(r.PaymentAmount/int64(installments))))
	}
	p.field(pdf, tr, "Periodicidade:", periodLabel(r.BillingPeriod))
	pdf.Ln(3)
}

func (p *PDFRenderer) writeGateway(pdf *fpdf.Fpdf, tr func(string) string, r *models.PaymentReceipt) {
	p.section(pdf, tr, "Dados da transação")
	p.field(pdf, tr, "ID do pagamento:", r.PaymentID)
	p.field(pdf, tr, "NSU:", r.ProofOfSale)
	p.field(pdf, tr, "TID:", r.TransactionID)
	p.field(pdf, tr, "Autorização:", r.AuthorizationCode)
	if r.ReturnCode != "" {
		p.field(pdf, tr, "Retorno:", strings.TrimSpace(r.ReturnCode+" "+r.ReturnMessage))
	}
	pdf.Ln(6)
}

func (p *PDFRenderer) writeFooter(pdf *fpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.MultiCell(0, 4, tr("Este comprovante foi gerado eletronicamente e é válido sem assinatura."), "", "C", false)
	if p.company.SupportEmail != "" {
		pdf.MultiCell(0, 4, tr("Dúvidas: "+p.company.SupportEmail), "", "C", false)
	}
}

func methodLabel(m models.PaymentMethod) string {
	switch m {
	case models.PaymentCreditCard:
		return "Cartão de crédito"
	case models.PaymentPix:
		return "PIX"
	default:
		return "Outro"
	}
}

func periodLabel(p models.BillingPeriod) string {
	switch p {
	case models.BillingAnnual:
		return "Anual"
	case models.BillingMonthly:
		return "Mensal"
	default:
		return ""
	}
}

// formatBRL renders minor units as "R$ 1.234,56".
func formatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	units := fmt.Sprintf("%d", cents/100)
	var grouped strings.Builder
	for i, d := range units {
		if i > 0 && (len(units)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}

func formatTaxID(id string) string {
	switch len(id) {
	case 11:
		return id[0:3] + "." + id[3:6] + "." + id[6:9] + "-" + id[9:11]
	case 14:
		return id[0:2] + "." + id[2:5] + "." + id[5:8] + "/" + id[8:12] + "-" + id[12:14]
	default:
		return id
	}
}
