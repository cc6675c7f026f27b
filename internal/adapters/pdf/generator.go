// Package pdf prints the appeal in the format Chilean courts expect: Letter
// paper, Times 12pt, justified paragraphs with a first-line indent, centered
// section headings, and the signature block at the end.
package pdf

import (
	"context"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/csg33k/mirecurso/internal/document"
)

const (
	fontFamily = "Times"
	fontSize   = 12.0
	lineH      = 6.5 // ~1.5 line spacing at 12pt
	indent     = 12.5
	margin     = 25.0
)

// Renderer implements ports.DocumentRenderer.
type Renderer struct {
	// Creator is written into the PDF metadata.
	Creator string
}

func New() *Renderer { return &Renderer{Creator: "mirecurso"} }

func (r *Renderer) ContentType() string { return "application/pdf" }
func (r *Renderer) Extension() string   { return ".pdf" }

// Render writes the whole document to w.
func (r *Renderer) Render(ctx context.Context, doc *document.Document, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AliasNbPages("{nb}")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Author, true)
	pdf.SetSubject(doc.Subject, true)
	pdf.SetCreator(r.Creator, true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin + 8)
		pdf.SetFont(fontFamily, "I", 9)
		pdf.SetTextColor(130, 130, 130)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	pdf.AddPage()
	p := &page{pdf: pdf, tr: tr}
	for i := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.section(&doc.Sections[i])
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}
	return pdf.Output(w)
}

type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (p *page) contentW() float64 {
	pageW, _ := p.pdf.GetPageSize()
	l, _, r, _ := p.pdf.GetMargins()
	return pageW - l - r
}

// ── Sections ──────────────────────────────────────────────────────────────────

func (p *page) section(s *document.Section) {
	pdf := p.pdf
	switch s.ID {
	case document.SectionSignature:
		pdf.Ln(lineH * 3)
		p.centered("_______________________________________", "")
	case document.SectionDisclaimer:
		p.disclaimer(s)
		return
	}

	if s.Heading != "" {
		pdf.Ln(lineH / 2)
		if s.Roman {
			p.centered(s.Heading, "B")
		} else {
			pdf.SetFont(fontFamily, "B", fontSize)
			pdf.CellFormat(0, lineH, p.tr(s.Heading), "", 1, "L", false, 0, "")
		}
		pdf.Ln(lineH / 3)
	}

	for _, b := range s.Blocks {
		switch b.Kind {
		case document.KindCaption:
			pdf.SetFont(fontFamily, "B", fontSize)
			pdf.SetX(p.contentW()/2 + margin)
			pdf.MultiCell(p.contentW()/2, lineH-1, p.tr(b.Text()), "", "L", false)
		case document.KindTribunal:
			pdf.Ln(lineH)
			p.centered(b.Text(), "B")
			pdf.Ln(lineH)
		case document.KindCentered, document.KindSignature:
			p.centered(b.Text(), "")
		case document.KindPlaceDate:
			pdf.Ln(lineH)
			pdf.SetFont(fontFamily, "", fontSize)
			pdf.CellFormat(0, lineH, p.tr(b.Text()), "", 1, "R", false, 0, "")
		default:
			p.paragraph(b, s.Numbering != document.Unnumbered)
		}
	}
}

func (p *page) centered(text, style string) {
	p.pdf.SetFont(fontFamily, style, fontSize)
	p.pdf.MultiCell(0, lineH, p.tr(text), "", "C", false)
}

// paragraph flows runs with Write so bold spans stay inline. Numbered list
// entries hang at the indent instead of indenting the first line.
func (p *page) paragraph(b document.Block, list bool) {
	pdf := p.pdf
	l, _, _, _ := pdf.GetMargins()
	pdf.SetX(l + indent)
	if b.Label != "" {
		pdf.SetFont(fontFamily, "B", fontSize)
		pdf.Write(lineH, p.tr(b.Label+" "))
	}
	for _, r := range b.Runs {
		style := ""
		if r.Bold {
			style = "B"
		}
		pdf.SetFont(fontFamily, style, fontSize)
		pdf.Write(lineH, p.tr(r.Text))
	}
	pdf.Ln(lineH)

	if len(b.Items) > 0 {
		pdf.SetFont(fontFamily, "", fontSize)
		pdf.SetLeftMargin(l + indent*2)
		for i, item := range b.Items {
			pdf.SetX(l + indent*2)
			pdf.Write(lineH, p.tr(document.Letter(i+1)+") "+item))
			pdf.Ln(lineH)
		}
		pdf.SetLeftMargin(l)
	}
	if !list || b.Label == "" {
		pdf.Ln(lineH / 3)
	}
}

func (p *page) disclaimer(s *document.Section) {
	pdf := p.pdf
	pdf.Ln(lineH * 2)
	pdf.SetDrawColor(150, 150, 150)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetFont(fontFamily, "B", 9)
	pdf.CellFormat(0, 5.5, p.tr(s.Heading), "LRT", 1, "L", true, 0, "")
	pdf.SetFont(fontFamily, "I", 8.5)
	pdf.SetTextColor(80, 80, 80)
	for _, b := range s.Blocks {
		pdf.MultiCell(0, 4.5, p.tr(b.Text()), "LRB", "J", true)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
}
