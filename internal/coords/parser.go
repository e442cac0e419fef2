// Package coords parses line-oriented coordinate lists pasted into the DXF
// export form.
package coords

import (
	"fmt"
	"strings"

	"shokucho.jp/portal/internal/utils"
)

// Point is one parsed coordinate. Z is always 0 for two-value lines.
type Point struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// SkippedLine records a non-blank line that did not yield a point.
type SkippedLine struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Result holds the points parsed from a text and the lines that were dropped.
type Result struct {
	Points  []Point
	Skipped []SkippedLine
}

// Parse reads one point per line. Lines are "x,y" or "label,x,y" where the
// label may itself contain commas; "x,y,label" is accepted when the trailing
// parts are not numeric. Blank lines are ignored and malformed lines are
// reported in Skipped instead of failing the batch.
func Parse(text string) Result {
	res := Result{Points: []Point{}}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		p, err := parseLine(line)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedLine{Line: i + 1, Text: line, Reason: err.Error()})
			continue
		}
		res.Points = append(res.Points, p)
	}
	return res
}

func parseLine(line string) (Point, error) {
	parts := strings.Split(strings.ReplaceAll(line, "，", ","), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		return Point{}, fmt.Errorf("expected at least 2 values, got %d", len(parts))
	}

	n := len(parts)
	x, errX := utils.ParseNumber(parts[n-2])
	y, errY := utils.ParseNumber(parts[n-1])
	if errX == nil && errY == nil {
		return Point{Label: strings.Join(parts[:n-2], ","), X: x, Y: y}, nil
	}

	if n > 2 {
		x, errX2 := utils.ParseNumber(parts[0])
		y, errY2 := utils.ParseNumber(parts[1])
		if errX2 == nil && errY2 == nil {
			return Point{Label: strings.Join(parts[2:], ","), X: x, Y: y}, nil
		}
	}

	if errX != nil {
		return Point{}, fmt.Errorf("x: %w", errX)
	}
	return Point{}, fmt.Errorf("y: %w", errY)
}
