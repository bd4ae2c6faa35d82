// Package pdftest builds small, valid PDF documents for tests.
//
// Every page uses 12pt Courier with WinAnsi encoding, so each glyph is 7.2pt
// wide and positions in tests can be computed by hand.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// FontSize is the size of every line of text.
const FontSize = 12

// GlyphWidth is the advance of one Courier glyph at FontSize.
const GlyphWidth = 7.2

// Line is one run of text whose baseline starts at (X, Y).
type Line struct {
	X, Y float64
	Text string
}

// Page is the text content of one page.
type Page []Line

// Build returns a PDF document with the given pages.
func Build(pages ...Page) []byte {
	var buf bytes.Buffer
	var offsets []int

	begin := func() int {
		offsets = append(offsets, buf.Len())
		n := len(offsets)
		fmt.Fprintf(&buf, "%d 0 obj\n", n)
		return n
	}
	end := func() {
		buf.WriteString("\nendobj\n")
	}

	buf.WriteString("%PDF-1.4\n")

	// 1: catalog, 2: page tree, 3: font, then page and content per page
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	begin()
	buf.WriteString("<< /Type /Catalog /Pages 2 0 R >>")
	end()

	begin()
	fmt.Fprintf(&buf, "<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	end()

	begin()
	widths := strings.TrimSpace(strings.Repeat("600 ", 95))
	fmt.Fprintf(&buf, "<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>", widths)
	end()

	for i, page := range pages {
		content := contentStream(page)

		begin()
		fmt.Fprintf(&buf, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i)
		end()

		begin()
		fmt.Fprintf(&buf, "<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
		end()
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// Simple returns a document with one line of text per page, at the top.
func Simple(texts ...string) []byte {
	pages := make([]Page, len(texts))
	for i, t := range texts {
		pages[i] = Page{{X: 72, Y: 720, Text: t}}
	}
	return Build(pages...)
}

func contentStream(page Page) string {
	var b strings.Builder
	for _, l := range page {
		fmt.Fprintf(&b, "BT /F1 %d Tf %.2f %.2f Td (%s) Tj ET\n", FontSize, l.X, l.Y, escape(l.Text))
	}
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
