package lyrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Line 一行带时间的歌词
type Line struct {
	Content     string
	Position    float64 // seconds
	Attachments map[AttachmentTag]Attachment
	Enabled     bool

	// owner identifies the Document holding this line. It is a lookup
	// handle only; the document owns its lines, never the other way around.
	owner uuid.UUID
}

// NewLine returns an enabled line. Negative positions are clamped to zero.
func NewLine(content string, position float64) Line {
	if position < 0 {
		position = 0
	}
	return Line{
		Content:  content,
		Position: position,
		Enabled:  true,
	}
}

// Owner returns the id of the owning document, uuid.Nil for a detached line.
func (l *Line) Owner() uuid.UUID {
	return l.owner
}

// Attach sets (or overwrites) the attachment under tag.
func (l *Line) Attach(tag AttachmentTag, a Attachment) {
	if l.Attachments == nil {
		l.Attachments = make(map[AttachmentTag]Attachment)
	}
	l.Attachments[tag] = a
}

// Translation returns the bare "tr" attachment, falling back to the first
// language-specific one in tag order.
func (l *Line) Translation() (string, bool) {
	if a, ok := l.Attachments[TagTranslation]; ok {
		return a.String(), true
	}
	for _, tag := range l.sortedTags() {
		if tag.IsTranslation() {
			return l.Attachments[tag].String(), true
		}
	}
	return "", false
}

// TimeTags returns the inline timing attachment if the line has one.
func (l *Line) TimeTags() *TimeTags {
	tt, _ := l.Attachments[TagTimeTag].(*TimeTags)
	return tt
}

// Equal compares content and position only. Two different lines sharing
// both are indistinguishable under this relation.
func (l Line) Equal(o Line) bool {
	return l.Content == o.Content && l.Position == o.Position
}

// TimeTag formats the position as mm:ss.xxx.
func (l Line) TimeTag() string {
	return formatTimeTag(l.Position)
}

// String 导出为 LRC 文本，每个附件一行，时间戳相同
func (l Line) String() string {
	tag := l.TimeTag()
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]%s", tag, l.Content)
	for _, t := range l.sortedTags() {
		fmt.Fprintf(&b, "\n[%s][%s]%s", tag, t, l.Attachments[t])
	}
	return b.String()
}

func (l *Line) sortedTags() []AttachmentTag {
	tags := make([]AttachmentTag, 0, len(l.Attachments))
	for t := range l.Attachments {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (l Line) clone() Line {
	c := l
	if l.Attachments != nil {
		c.Attachments = make(map[AttachmentTag]Attachment, len(l.Attachments))
		for k, v := range l.Attachments {
			c.Attachments[k] = cloneAttachment(v)
		}
	}
	return c
}

func formatTimeTag(position float64) string {
	ms := secondsToMillis(position)
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
