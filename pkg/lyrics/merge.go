package lyrics

import (
	"math"
	"strings"
)

// MergeTolerance is the largest position difference, in seconds, at which a
// translation line is still considered to belong to an original line.
const MergeTolerance = 0.1

// Merge attaches the content of the nearest translation line to every line of d
// under TagTranslation. Both documents are position ordered so a single forward
// walk over translation is enough. Content and positions of d are untouched.
// It returns the number of lines that received a translation.
func (d *Document) Merge(translation *Document) int {
	if translation == nil || len(translation.lines) == 0 {
		return 0
	}

	tr := translation.lines
	merged := 0
	j := 0
	for i := range d.lines {
		p := d.lines[i].Position
		j = nearestFrom(tr, j, p)

		if math.Abs(tr[j].Position-p) > MergeTolerance {
			continue
		}
		content := strings.TrimSpace(tr[j].Content)
		if content == "" {
			continue
		}
		d.lines[i].Attach(TagTranslation, PlainText(content))
		merged++
	}
	return merged
}

// nearestFrom advances from j to the line closest to p. j always points at the
// first line of a run of equal positions, so ties resolve to the earliest index.
func nearestFrom(lines []Line, j int, p float64) int {
	for {
		end := j
		for end+1 < len(lines) && lines[end+1].Position == lines[j].Position {
			end++
		}
		if end+1 < len(lines) && math.Abs(lines[end+1].Position-p) < math.Abs(lines[j].Position-p) {
			j = end + 1
			continue
		}
		return j
	}
}
