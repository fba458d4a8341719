package lyrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// IDTag LRC 头部标签
type IDTag string

const (
	IDTitle  IDTag = "ti"
	IDArtist IDTag = "ar"
	IDAlbum  IDTag = "al"
	IDLrcBy  IDTag = "by"

	// offset and length are held in Document fields, not in IDTags.
	idOffset IDTag = "offset"
	idLength IDTag = "length"
)

var idTagOrder = []IDTag{IDTitle, IDArtist, IDAlbum, IDLrcBy}

// Metadata describes where a document came from.
type Metadata struct {
	Source        string
	ArtworkURL    string
	ProviderToken string
}

// Document is a position-ordered set of lines plus id tags.
//
// A Document is not safe for concurrent mutation. Publish a Clone to
// readers and mutate the copy instead of the published value.
type Document struct {
	ID       uuid.UUID
	IDTags   map[IDTag]string
	Offset   float64 // seconds, positive shows lines earlier
	Length   float64 // seconds, 0 when unknown
	Metadata Metadata

	lines []Line
}

// New returns an empty document with a fresh identity.
func New() *Document {
	return &Document{
		ID:     uuid.New(),
		IDTags: make(map[IDTag]string),
	}
}

// Lines exposes the ordered lines. Callers must not modify the slice.
func (d *Document) Lines() []Line {
	if d == nil {
		return nil
	}
	return d.lines
}

// Len returns the number of lines.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.lines)
}

// Line returns the i-th line for in-place edits of attachments or the enabled flag.
// Changing Position through the pointer breaks ordering; use SetPosition.
func (d *Document) Line(i int) *Line {
	if i < 0 || i >= len(d.lines) {
		return nil
	}
	return &d.lines[i]
}

// AddLines copies lines into the document, takes ownership of the copies and
// re-sorts by position. Lines with equal positions keep their insertion order.
func (d *Document) AddLines(lines ...Line) {
	for _, l := range lines {
		c := l.clone()
		if c.Position < 0 {
			c.Position = 0
		}
		c.owner = d.ID
		d.lines = append(d.lines, c)
	}
	d.sortLines()
}

// SetPosition moves line i and restores ordering.
func (d *Document) SetPosition(i int, position float64) {
	if i < 0 || i >= len(d.lines) {
		return
	}
	d.lines[i].Position = math.Max(position, 0)
	d.sortLines()
}

// Owns reports whether l belongs to this document.
func (d *Document) Owns(l *Line) bool {
	return l != nil && l.owner == d.ID
}

// AdjustOffset shifts every line uniformly at read time.
func (d *Document) AdjustOffset(delta float64) {
	d.Offset += delta
}

// HasTranslation reports whether any line carries a translation.
func (d *Document) HasTranslation() bool {
	for i := range d.lines {
		if _, ok := d.lines[i].Translation(); ok {
			return true
		}
	}
	return false
}

// HasTimeTags reports whether any line carries inline timing.
func (d *Document) HasTimeTags() bool {
	for i := range d.lines {
		if d.lines[i].TimeTags() != nil {
			return true
		}
	}
	return false
}

// Clone deep-copies the document under a new identity.
func (d *Document) Clone() *Document {
	c := &Document{
		ID:       uuid.New(),
		IDTags:   make(map[IDTag]string, len(d.IDTags)),
		Offset:   d.Offset,
		Length:   d.Length,
		Metadata: d.Metadata,
		lines:    make([]Line, len(d.lines)),
	}
	for k, v := range d.IDTags {
		c.IDTags[k] = v
	}
	for i, l := range d.lines {
		cl := l.clone()
		cl.owner = c.ID
		c.lines[i] = cl
	}
	return c
}

// String exports the document as LRC text.
func (d *Document) String() string {
	var b strings.Builder
	seen := make(map[IDTag]bool)
	for _, tag := range idTagOrder {
		if v, ok := d.IDTags[tag]; ok && v != "" {
			fmt.Fprintf(&b, "[%s:%s]\n", tag, v)
		}
		seen[tag] = true
	}
	var extra []IDTag
	for tag := range d.IDTags {
		if !seen[tag] {
			extra = append(extra, tag)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, tag := range extra {
		fmt.Fprintf(&b, "[%s:%s]\n", tag, d.IDTags[tag])
	}
	if d.Length > 0 {
		secs := int(math.Round(d.Length))
		fmt.Fprintf(&b, "[%s:%02d:%02d]\n", idLength, secs/60, secs%60)
	}
	if d.Offset != 0 {
		fmt.Fprintf(&b, "[%s:%d]\n", idOffset, int64(math.Round(d.Offset*1000)))
	}
	for _, l := range d.lines {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (d *Document) sortLines() {
	sort.SliceStable(d.lines, func(i, j int) bool { return d.lines[i].Position < d.lines[j].Position })
}
