package lyrics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// AttachmentTag 行附件的键
type AttachmentTag string

const (
	// TagTranslation translation text for the line, optionally suffixed with a language ("tr:zh").
	TagTranslation AttachmentTag = "tr"
	// TagTimeTag inline word or character level timing.
	TagTimeTag AttachmentTag = "tt"
)

// TranslationTag returns the translation tag for lang, or the bare tag when lang is empty.
func TranslationTag(lang string) AttachmentTag {
	if lang == "" {
		return TagTranslation
	}
	return AttachmentTag(string(TagTranslation) + ":" + lang)
}

// IsTranslation reports whether t is "tr" or "tr:<lang>".
func (t AttachmentTag) IsTranslation() bool {
	return t == TagTranslation || strings.HasPrefix(string(t), string(TagTranslation)+":")
}

// Attachment is extra content hanging off a single line.
type Attachment interface {
	String() string
}

// PlainText 纯文本附件（翻译等）
type PlainText string

func (p PlainText) String() string { return string(p) }

// InlineTag marks where the rune at Index starts, relative to the line position.
type InlineTag struct {
	Index  int
	Offset float64 // seconds
}

// TimeTags is the inline timing of a line. Serialized as "<ms,index>...<ms>",
// the trailing bare value being the duration of the whole line.
type TimeTags struct {
	Tags     []InlineTag
	Duration float64
}

var inlineTagPattern = regexp.MustCompile(`<(\d+)(?:,(\d+))?>`)

// ParseTimeTags parses the serialized form produced by TimeTags.String.
func ParseTimeTags(s string) (*TimeTags, error) {
	matches := inlineTagPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no inline time tags in %q", s)
	}

	tt := &TimeTags{}
	for _, m := range matches {
		ms, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid inline time %q: %w", m[1], err)
		}
		if m[2] == "" {
			tt.Duration = float64(ms) / 1000
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid inline index %q: %w", m[2], err)
		}
		tt.Tags = append(tt.Tags, InlineTag{Index: idx, Offset: float64(ms) / 1000})
	}
	sort.SliceStable(tt.Tags, func(i, j int) bool { return tt.Tags[i].Index < tt.Tags[j].Index })
	return tt, nil
}

func (t *TimeTags) String() string {
	var b strings.Builder
	for _, tag := range t.Tags {
		fmt.Fprintf(&b, "<%d,%d>", secondsToMillis(tag.Offset), tag.Index)
	}
	if t.Duration > 0 {
		fmt.Fprintf(&b, "<%d>", secondsToMillis(t.Duration))
	}
	return b.String()
}

func (t *TimeTags) clone() *TimeTags {
	c := &TimeTags{Duration: t.Duration}
	c.Tags = append([]InlineTag(nil), t.Tags...)
	return c
}

func cloneAttachment(a Attachment) Attachment {
	if tt, ok := a.(*TimeTags); ok {
		return tt.clone()
	}
	return a
}

func secondsToMillis(s float64) int64 {
	return int64(s*1000 + 0.5)
}
