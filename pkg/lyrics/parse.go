package lyrics

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoLines 文本中没有任何可识别的歌词行
var ErrNoLines = errors.New("lyrics: no timed lines found")

var (
	leadingTimeTagsPattern = regexp.MustCompile(`^(?:\[\d+:\d+(?:[.:]\d+)?\])+`)
	timeTagPattern         = regexp.MustCompile(`\[(\d+):(\d+)(?:[.:](\d+))?\]`)
	idTagPattern           = regexp.MustCompile(`^\[([A-Za-z][A-Za-z0-9_]*):(.*)\]$`)
	attachmentPattern      = regexp.MustCompile(`^\[(tr|tt)(?::([A-Za-z0-9_-]+))?\](.*)$`)
)

// Parse builds a Document from LRC text. Lines that match neither the timed
// form nor the id-tag form are skipped. ErrNoLines is returned when the text
// yields no timed line at all.
//
// A [tr]/[tt] line belongs to the most recent content line at its timestamp.
// One that appears before any content line at that timestamp is held until
// the content line shows up; if none ever does it is dropped.
func Parse(text string) (*Document, error) {
	doc := New()
	var lines []Line
	last := make(map[int64]int)
	pending := make(map[int64][]pendingAttachment)

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if prefix := leadingTimeTagsPattern.FindString(raw); prefix != "" {
			rest := raw[len(prefix):]
			positions := parseTimeTags(prefix)

			if m := attachmentPattern.FindStringSubmatch(rest); m != nil {
				tag, a, ok := parseAttachment(m[1], m[2], strings.TrimSpace(m[3]))
				if !ok {
					continue
				}
				for _, pos := range positions {
					key := secondsToMillis(pos)
					if idx, found := last[key]; found {
						lines[idx].Attach(tag, cloneAttachment(a))
					} else {
						pending[key] = append(pending[key], pendingAttachment{tag, cloneAttachment(a)})
					}
				}
				continue
			}

			content := strings.TrimSpace(rest)
			for _, pos := range positions {
				key := secondsToMillis(pos)
				line := NewLine(content, pos)
				for _, p := range pending[key] {
					line.Attach(p.tag, p.value)
				}
				delete(pending, key)
				last[key] = len(lines)
				lines = append(lines, line)
			}
			continue
		}

		if m := idTagPattern.FindStringSubmatch(raw); m != nil {
			applyIDTag(doc, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
		}
	}

	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	doc.AddLines(lines...)
	return doc, nil
}

type pendingAttachment struct {
	tag   AttachmentTag
	value Attachment
}

func parseAttachment(kind, lang, value string) (AttachmentTag, Attachment, bool) {
	if value == "" {
		return "", nil, false
	}
	switch kind {
	case string(TagTranslation):
		return TranslationTag(lang), PlainText(value), true
	case string(TagTimeTag):
		tt, err := ParseTimeTags(value)
		if err != nil {
			return "", nil, false
		}
		return TagTimeTag, tt, true
	}
	return "", nil, false
}

func applyIDTag(doc *Document, key, value string) {
	switch IDTag(key) {
	case idOffset:
		if ms, err := strconv.ParseFloat(value, 64); err == nil {
			doc.Offset = ms / 1000
		}
	case idLength:
		if secs, ok := parseDuration(value); ok {
			doc.Length = secs
		}
	default:
		doc.IDTags[IDTag(key)] = value
	}
}

// parseTimeTags 解析行首的所有时间标签
func parseTimeTags(prefix string) []float64 {
	matches := timeTagPattern.FindAllStringSubmatch(prefix, -1)
	positions := make([]float64, 0, len(matches))
	for _, match := range matches {
		min, _ := strconv.Atoi(match[1])
		sec, _ := strconv.Atoi(match[2])
		positions = append(positions, float64(min*60+sec)+parseFraction(match[3]))
	}
	return positions
}

// parseFraction 根据小数位数处理毫秒：.1 = 100ms, .49 = 490ms, .490 = 490ms
func parseFraction(frac string) float64 {
	if frac == "" {
		return 0
	}
	if len(frac) > 3 {
		frac = frac[:3]
	}
	ms, _ := strconv.Atoi(frac)
	switch len(frac) {
	case 1:
		ms *= 100
	case 2:
		ms *= 10
	}
	return float64(ms) / 1000
}

// parseDuration accepts "mm:ss", "mm:ss.xx" or plain seconds.
func parseDuration(value string) (float64, bool) {
	if min, sec, ok := strings.Cut(value, ":"); ok {
		m, err := strconv.Atoi(strings.TrimSpace(min))
		if err != nil {
			return 0, false
		}
		s, err := strconv.ParseFloat(strings.TrimSpace(sec), 64)
		if err != nil {
			return 0, false
		}
		return float64(m*60) + s, true
	}
	s, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return s, true
}
