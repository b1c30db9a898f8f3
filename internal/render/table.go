// Package render formats print-run rows for a terminal or as an HTML fragment.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aryannaik/printrun-vault/internal/backend"
)

// EmptyRows is shown when a product has no print-run rows.
const EmptyRows = "No print run rows found."

var printer = message.NewPrinter(language.English)

// PrintRun formats a print run with thousands separators.
func PrintRun(n backend.Count) string {
	return printer.Sprintf("%d", int64(n))
}

// Facets joins the non-empty facets with a bullet, e.g. "2021 • Baseball • Topps".
func Facets(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " • ")
}

func metaLine(m backend.ProductMeta) string {
	return Facets(m.Year.String(), m.Sport.String(), m.Manufacturer.String())
}

// hasSubsets reports whether any row carries a subset size, in which case the
// extra column is shown.
func hasSubsets(rows []backend.Row) bool {
	for _, r := range rows {
		if r.SubSetSize != "" {
			return true
		}
	}
	return false
}

func columns(rows []backend.Row) []string {
	cols := []string{"Set Type", "Set Line", "Print Run", "Serial"}
	if hasSubsets(rows) {
		cols = append(cols, "Subset Size")
	}
	return cols
}

func cells(r backend.Row, subsets bool) []string {
	c := []string{r.SetType.String(), r.SetLine.String(), PrintRun(r.PrintRun), r.Serial.String()}
	if subsets {
		c = append(c, r.SubSetSize.String())
	}
	return c
}

// Table writes the product header and an aligned text table of its rows.
func Table(w io.Writer, res *backend.Rows) error {
	if res == nil || len(res.Rows) == 0 {
		_, err := fmt.Fprintln(w, EmptyRows)
		return err
	}

	var b strings.Builder
	b.WriteString(res.Meta.DisplayName)
	b.WriteString("\n")
	if line := metaLine(res.Meta); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if res.Meta.CMURL != "" {
		b.WriteString(res.Meta.CMURL)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	header := columns(res.Rows)
	subsets := len(header) == 5
	body := make([][]string, len(res.Rows))
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for i, r := range res.Rows {
		body[i] = cells(r, subsets)
		for j, c := range body[i] {
			if w := runewidth.StringWidth(c); w > widths[j] {
				widths[j] = w
			}
		}
	}

	writeRow(&b, header, widths)
	rule := make([]string, len(header))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	writeRow(&b, rule, widths)
	for _, row := range body {
		writeRow(&b, row, widths)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// printRunCol is right-aligned; everything else is left-aligned.
const printRunCol = 2

func writeRow(b *strings.Builder, row []string, widths []int) {
	for i, c := range row {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == printRunCol {
			b.WriteString(runewidth.FillLeft(c, widths[i]))
		} else if i == len(row)-1 {
			b.WriteString(c)
		} else {
			b.WriteString(runewidth.FillRight(c, widths[i]))
		}
	}
	b.WriteString("\n")
}
