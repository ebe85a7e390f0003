// Package signtext implements the display-width rules of the physical sign:
// messages are at most 5 lines, each line at most 8 width units, 40 units in
// total. Standard glyphs occupy one unit; full-width and emoji glyphs occupy
// two.
package signtext

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	// MaxLines is the line count limit of the sign.
	MaxLines = 5
	// MaxLineWidth is the per-line display width budget.
	MaxLineWidth = 8
	// MaxTotalWidth is the whole-message display width budget.
	MaxTotalWidth = 40
)

// fullWidthSpace is the padding glyph used when rendering fixed-width lines.
const fullWidthSpace = '　'

// RuneWidth returns the display width of a single glyph: 1 or 2. Emoji
// code points (U+1F000 and above) always count 2 even where the Unicode
// east-asian tables would say otherwise.
func RuneWidth(r rune) int {
	if r >= 0x1F000 {
		return 2
	}
	if runewidth.RuneWidth(r) == 2 {
		return 2
	}
	return 1
}

// StringWidth returns the summed display width of s.
func StringWidth(s string) int {
	w := 0
	for _, r := range s {
		w += RuneWidth(r)
	}
	return w
}

// TruncateToWidth greedily consumes glyphs of s while the running width stays
// within max, stopping before any glyph that would overflow. A wide glyph is
// never split across the boundary.
func TruncateToWidth(s string, max int) string {
	var b strings.Builder
	w := 0
	for _, r := range s {
		rw := RuneWidth(r)
		if w+rw > max {
			break
		}
		b.WriteRune(r)
		w += rw
	}
	return b.String()
}

// PadLine pads s with full-width spaces up to exactly width display units,
// for rendering only. An odd single unit of remainder is filled with a plain
// space, since the full-width space occupies two units. Lines already at or
// over the target are returned unchanged.
func PadLine(s string, width int) string {
	w := StringWidth(s)
	if w >= width {
		return s
	}
	var b strings.Builder
	b.WriteString(s)
	for ; w+2 <= width; w += 2 {
		b.WriteRune(fullWidthSpace)
	}
	if w < width {
		b.WriteByte(' ')
	}
	return b.String()
}
