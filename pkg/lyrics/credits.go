package lyrics

import "regexp"

var creditPattern = regexp.MustCompile(`(?i)^\s*(作词|作曲|编曲|制作人|监制|混音|和声|词|曲|lyrics|lyricist|composer|arranger|producer|written by|lyrics by|music by)\s*[:：]`)

// IsCredit reports whether content is a credit line such as "作词 : xxx".
func IsCredit(content string) bool {
	return creditPattern.MatchString(content)
}

// DisableCredits disables lines that only carry song credits
// ("作词 : xxx", "Composer: xxx") and returns how many were disabled.
func (d *Document) DisableCredits() int {
	n := 0
	for i := range d.lines {
		if d.lines[i].Enabled && IsCredit(d.lines[i].Content) {
			d.lines[i].Enabled = false
			n++
		}
	}
	return n
}
