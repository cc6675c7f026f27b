// Package document builds the recurso de protección as a tree of sections
// and blocks. Optional clauses are decided first; labels (PRIMERO:, a), 1.,
// section roman numerals) are assigned once afterwards, so including or
// omitting a clause never leaves gaps.
package document

import (
	"fmt"
	"strings"
)

// Numbering is how the numbered blocks of a section are labelled.
type Numbering int

const (
	Unnumbered Numbering = iota
	// PRIMERO:, SEGUNDO:
	Ordinal
	// a), b)
	Lettered
	// 1., 2.
	Decimal
)

type Kind int

const (
	KindParagraph Kind = iota
	// KindCaption lines sit above the court heading.
	KindCaption
	KindTribunal
	KindCentered
	KindSignature
	KindPlaceDate
	KindDisclaimer
)

// SectionID identifies the fixed parts of the document.
type SectionID string

const (
	SectionSumma       SectionID = "suma"
	SectionTribunal    SectionID = "tribunal"
	SectionAppearance  SectionID = "comparecencia"
	SectionFacts       SectionID = "hechos"
	SectionLaw         SectionID = "derecho"
	SectionPrecedent   SectionID = "precedente"
	SectionPrayer      SectionID = "petitorio"
	SectionAnnex       SectionID = "primer_otrosi"
	SectionSelfCounsel SectionID = "segundo_otrosi"
	SectionSignature   SectionID = "firma"
	SectionPlaceDate   SectionID = "lugar_fecha"
	SectionDisclaimer  SectionID = "aviso"
)

// Run is a span of text; Bold marks emphasis.
type Run struct {
	Text string
	Bold bool
}

type Block struct {
	Kind Kind
	// Numbered blocks take the next label of their section.
	Numbered bool
	Label    string
	Runs     []Run
	// Items is an enumeration inside the block, labelled a), b)...
	Items []string
}

// Text is the block's content without its label.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

type Section struct {
	ID SectionID
	// Title is rendered as a centered heading; titled sections other than the
	// otrosíes are prefixed with a roman numeral.
	Title     string
	Roman     bool
	Heading   string // computed
	Numbering Numbering
	Blocks    []Block
}

// PrecedentVariant is the argument chosen for the precedent section.
type PrecedentVariant string

const (
	PrecedentGeneral      PrecedentVariant = "general"
	PrecedentNonEssential PrecedentVariant = "adjetivo_no_esencial"
)

type Document struct {
	Title     string
	Author    string
	Subject   string
	Precedent PrecedentVariant
	Sections  []Section
}

// Section returns the section with id, or nil.
func (d *Document) Section(id SectionID) *Section {
	for i := range d.Sections {
		if d.Sections[i].ID == id {
			return &d.Sections[i]
		}
	}
	return nil
}

// number assigns every label from the blocks actually included.
func (d *Document) number() {
	roman := 0
	for i := range d.Sections {
		s := &d.Sections[i]
		s.Heading = s.Title
		if s.Roman && s.Title != "" {
			roman++
			s.Heading = Roman(roman) + ". " + s.Title
		}
		n := 0
		for j := range s.Blocks {
			b := &s.Blocks[j]
			if !b.Numbered || s.Numbering == Unnumbered {
				b.Label = ""
				continue
			}
			n++
			b.Label = label(s.Numbering, n)
		}
	}
}

func label(n Numbering, i int) string {
	switch n {
	case Ordinal:
		return OrdinalWord(i) + ":"
	case Lettered:
		return Letter(i) + ")"
	case Decimal:
		return fmt.Sprintf("%d.", i)
	}
	return ""
}

var ordinals = []string{
	"PRIMERO", "SEGUNDO", "TERCERO", "CUARTO", "QUINTO",
	"SEXTO", "SÉPTIMO", "OCTAVO", "NOVENO", "DÉCIMO",
	"UNDÉCIMO", "DUODÉCIMO", "DECIMOTERCERO", "DECIMOCUARTO", "DECIMOQUINTO",
	"DECIMOSEXTO", "DECIMOSÉPTIMO", "DECIMOCTAVO", "DECIMONOVENO", "VIGÉSIMO",
}

// OrdinalWord returns the legal ordinal for i (1-based). Past twenty it
// falls back to "N° i".
func OrdinalWord(i int) string {
	if i >= 1 && i <= len(ordinals) {
		return ordinals[i-1]
	}
	return fmt.Sprintf("N° %d", i)
}

// Letter returns a, b, ... z, aa, ab, ...
func Letter(i int) string {
	if i < 1 {
		return ""
	}
	var b []byte
	for i > 0 {
		i--
		b = append([]byte{byte('a' + i%26)}, b...)
		i /= 26
	}
	return string(b)
}

var romans = []struct {
	v int
	s string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"}, {100, "C"}, {90, "XC"},
	{50, "L"}, {40, "XL"}, {10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

func Roman(i int) string {
	var sb strings.Builder
	for _, r := range romans {
		for i >= r.v {
			sb.WriteString(r.s)
			i -= r.v
		}
	}
	return sb.String()
}
