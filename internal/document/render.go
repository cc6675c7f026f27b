package document

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ── Plain text ────────────────────────────────────────────────────────────────

// RenderText writes the document as the plain-text filing.
func RenderText(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	for _, s := range doc.Sections {
		switch s.ID {
		case SectionSignature:
			bw.WriteString("\n\n\n_______________________________________\n")
		case SectionDisclaimer:
			bw.WriteString("\n---\n")
		}
		if s.Heading != "" {
			fmt.Fprintf(bw, "%s\n\n", s.Heading)
		}
		for _, b := range s.Blocks {
			line := b.Text()
			if b.Label != "" {
				line = b.Label + " " + line
			}
			bw.WriteString(line)
			bw.WriteString("\n")
			for i, item := range b.Items {
				fmt.Fprintf(bw, "   %s) %s\n", Letter(i+1), item)
			}
			if b.Kind != KindCaption && b.Kind != KindSignature {
				bw.WriteString("\n")
			}
		}
		if s.ID == SectionSumma {
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

// Text returns RenderText as a string.
func Text(doc *Document) string {
	var buf bytes.Buffer
	_ = RenderText(&buf, doc)
	return buf.String()
}

// ── Markdown / HTML ───────────────────────────────────────────────────────────

// RenderMarkdown writes the document as CommonMark. Labels are escaped so a
// renderer keeps the computed numbering instead of building its own lists.
func RenderMarkdown(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	for _, s := range doc.Sections {
		switch s.ID {
		case SectionSignature:
			bw.WriteString("\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\\_\n\n")
		case SectionDisclaimer:
			bw.WriteString("---\n\n")
		}
		if s.Heading != "" {
			level := "##"
			if !s.Roman {
				level = "###"
			}
			fmt.Fprintf(bw, "%s %s\n\n", level, mdEscape(s.Heading))
		}
		for _, b := range s.Blocks {
			var line strings.Builder
			if b.Label != "" {
				line.WriteString(strings.Replace(mdEscape(b.Label), ".", `\.`, 1))
				line.WriteString(" ")
			}
			for _, r := range b.Runs {
				if r.Bold {
					line.WriteString("**" + mdEscape(r.Text) + "**")
					continue
				}
				line.WriteString(mdEscape(r.Text))
			}
			switch b.Kind {
			case KindTribunal:
				fmt.Fprintf(bw, "**%s**\n\n", line.String())
			case KindCaption, KindSignature:
				fmt.Fprintf(bw, "%s  \n", line.String())
			case KindDisclaimer:
				fmt.Fprintf(bw, "*%s*\n\n", line.String())
			default:
				fmt.Fprintf(bw, "%s\n\n", line.String())
			}
			for i, item := range b.Items {
				fmt.Fprintf(bw, "- %s) %s\n", Letter(i+1), mdEscape(item))
			}
			if len(b.Items) > 0 {
				bw.WriteString("\n")
			}
		}
		if s.ID == SectionSumma || s.ID == SectionSignature {
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

var mdReplacer = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`,
	`[`, `\[`, `]`, `\]`, `<`, `&lt;`, `>`, `&gt;`, `#`, `\#`,
)

func mdEscape(s string) string { return mdReplacer.Replace(s) }

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML writes an HTML fragment for the on-screen preview.
func RenderHTML(w io.Writer, doc *Document) error {
	var src bytes.Buffer
	if err := RenderMarkdown(&src, doc); err != nil {
		return err
	}
	if _, err := io.WriteString(w, `<article class="recurso">`+"\n"); err != nil {
		return err
	}
	if err := md.Convert(src.Bytes(), w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	_, err := io.WriteString(w, "</article>\n")
	return err
}
