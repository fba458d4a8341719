package lyrics

// ActiveLine returns the line being sung at position (seconds of playback) and
// its index. The document offset is applied to position. Disabled lines are
// skipped backwards. nil, -1 means nothing is active yet.
func (d *Document) ActiveLine(position float64) (*Line, int) {
	if d == nil {
		return nil, -1
	}
	idx := d.indexAt(position + d.Offset)
	for idx >= 0 && !d.lines[idx].Enabled {
		idx--
	}
	if idx < 0 {
		return nil, -1
	}
	return &d.lines[idx], idx
}

// NextLine returns the first enabled line after index i.
func (d *Document) NextLine(i int) (*Line, int) {
	if d == nil {
		return nil, -1
	}
	for j := i + 1; j < len(d.lines); j++ {
		if d.lines[j].Enabled {
			return &d.lines[j], j
		}
	}
	return nil, -1
}

// indexAt 二分查找最后一个 Position <= t 的行
func (d *Document) indexAt(t float64) int {
	if len(d.lines) == 0 || t < d.lines[0].Position {
		return -1
	}

	left, right := 0, len(d.lines)-1
	result := -1
	for left <= right {
		mid := (left + right) / 2
		if d.lines[mid].Position <= t {
			result = mid
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return result
}
