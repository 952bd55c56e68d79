// Package console implements the interactive menu frontend. All output
// goes through an io.Writer so tests can capture full transcripts.
package console

import (
	"strings"
	"unicode/utf8"
)

// FrameTitle renders a three-line banner. The title gets one space of
// breathing room on each side and the frame never shrinks below 56
// columns.
func FrameTitle(title string) string {
	text := " " + strings.TrimSpace(title) + " "
	width := max(56, utf8.RuneCountInString(text)+2)

	border := `\` + strings.Repeat("*", width-2) + "/"
	line := `\ ` + center(text, width-4) + " /"
	return border + "\n" + line + "\n" + border
}

// DrawTable renders rows in the framed layout the menu uses. Column
// widths fit the widest cell, headers included; every row including the
// header sits between star borders.
func DrawTable(rows [][]string, headers []string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	rowLine := func(cells []string) string {
		padded := make([]string, len(widths))
		for i := range widths {
			padded[i] = ljust(cells[i], widths[i])
		}
		return `\ ` + strings.Join(padded, " | ") + " /"
	}

	totalWidth := 3*(len(widths)-1) + 4
	for _, w := range widths {
		totalWidth += w
	}
	border := `\` + strings.Repeat("*", totalWidth-2) + "/"

	var b strings.Builder
	b.WriteString(border)
	b.WriteString("\n")
	b.WriteString(rowLine(headers))
	b.WriteString("\n")
	b.WriteString(border)
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(rowLine(row))
	}
	b.WriteString("\n")
	b.WriteString(border)
	return b.String()
}

// center pads s to width. An odd margin leans on the side the width's
// parity picks, which keeps the frames byte-for-byte stable.
func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	marg := width - n
	left := marg/2 + (marg & width & 1)
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", marg-left)
}

// ljust pads s with trailing spaces to the given rune width.
func ljust(s string, width int) string {
	if pad := width - utf8.RuneCountInString(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}
