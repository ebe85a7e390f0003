package signtext

import (
	"fmt"
	"strings"
)

// ViolationKind classifies a single format violation.
type ViolationKind string

const (
	ViolationTooManyLines ViolationKind = "too_many_lines"
	ViolationLineTooWide  ViolationKind = "line_too_wide"
	ViolationTotalTooWide ViolationKind = "total_too_wide"
)

// Violation describes one way a line set breaks the sign format. Line is
// 1-based and zero for message-level violations.
type Violation struct {
	Kind  ViolationKind
	Line  int
	Width int
}

// Result is the outcome of validating a candidate line set.
type Result struct {
	OK         bool
	TotalWidth int
	Violations []Violation
}

// Err returns nil for a passing result and a *FormatError otherwise.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return &FormatError{Result: r}
}

// FormatError reports that a message violates the sign's width or line-count
// rules. It is recovered conversationally, never fatal.
type FormatError struct {
	Result Result
}

func (e *FormatError) Error() string {
	parts := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		switch v.Kind {
		case ViolationTooManyLines:
			parts = append(parts, fmt.Sprintf("%d lines (max %d)", v.Width, MaxLines))
		case ViolationLineTooWide:
			parts = append(parts, fmt.Sprintf("line %d is %d units wide (max %d)", v.Line, v.Width, MaxLineWidth))
		case ViolationTotalTooWide:
			parts = append(parts, fmt.Sprintf("total width %d units (max %d)", v.Width, MaxTotalWidth))
		}
	}
	return "signtext: " + strings.Join(parts, "; ")
}

// ValidateLines checks a candidate line set against the sign format: at most
// MaxLines lines, each at most MaxLineWidth units wide, MaxTotalWidth units
// overall. Trailing padding is not expected here; validation always measures
// un-padded width.
func ValidateLines(lines []string) Result {
	res := Result{}
	if len(lines) > MaxLines {
		res.Violations = append(res.Violations, Violation{
			Kind:  ViolationTooManyLines,
			Width: len(lines),
		})
	}
	for i, line := range lines {
		w := StringWidth(line)
		res.TotalWidth += w
		if w > MaxLineWidth {
			res.Violations = append(res.Violations, Violation{
				Kind:  ViolationLineTooWide,
				Line:  i + 1,
				Width: w,
			})
		}
	}
	if res.TotalWidth > MaxTotalWidth {
		res.Violations = append(res.Violations, Violation{
			Kind:  ViolationTotalTooWide,
			Width: res.TotalWidth,
		})
	}
	res.OK = len(res.Violations) == 0
	return res
}

// SplitIntoLines turns raw user text into trimmed lines, each truncated to
// the per-line width budget. Blank lines are dropped. The line count is not
// capped here so that ValidateLines can report it.
func SplitIntoLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, TruncateToWidth(line, MaxLineWidth))
	}
	return lines
}
