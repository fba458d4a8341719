package lyrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docAt(t *testing.T, entries ...any) *Document {
	t.Helper()
	doc := New()
	for i := 0; i < len(entries); i += 2 {
		doc.AddLines(NewLine(entries[i+1].(string), entries[i].(float64)))
	}
	return doc
}

func TestMergeAttachesNearest(t *testing.T) {
	orig := docAt(t, 1.0, "one", 5.0, "five", 9.0, "nine")
	trans := docAt(t, 1.0625, "eins", 5.0, "fünf", 20.0, "zwanzig")

	merged := orig.Merge(trans)
	assert.Equal(t, 2, merged)

	tr, ok := orig.Line(0).Translation()
	require.True(t, ok)
	assert.Equal(t, "eins", tr)

	tr, ok = orig.Line(1).Translation()
	require.True(t, ok)
	assert.Equal(t, "fünf", tr)

	_, ok = orig.Line(2).Translation()
	assert.False(t, ok)
	assert.NotContains(t, orig.Line(2).Attachments, TagTranslation)
}

func TestMergeTieBreaksToEarliest(t *testing.T) {
	orig := docAt(t, 2.0, "two")
	trans := docAt(t, 1.9375, "early", 2.0625, "late")
	orig.Merge(trans)

	tr, _ := orig.Line(0).Translation()
	assert.Equal(t, "early", tr)

	orig = docAt(t, 1.0, "one", 3.0, "three")
	trans = docAt(t, 1.0, "first", 1.0, "second", 3.0, "drei")
	orig.Merge(trans)

	tr, _ = orig.Line(0).Translation()
	assert.Equal(t, "first", tr)
	tr, _ = orig.Line(1).Translation()
	assert.Equal(t, "drei", tr)
}

func TestMergeKeepsContentAndPosition(t *testing.T) {
	orig, err := Parse("[00:01.00]a\n[00:02.00]b\n[00:02.00]c\n[00:04.50]d")
	require.NoError(t, err)
	before := contentSet(orig)

	trans, err := Parse("[00:01.00]A\n[00:02.00]B\n[00:04.45]D\n[00:09.00]X")
	require.NoError(t, err)
	orig.Merge(trans)

	assert.Equal(t, before, contentSet(orig))
	for _, l := range orig.Lines() {
		_, ok := l.Translation()
		assert.True(t, ok, "line %q", l.Content)
	}
}

func TestMergeSkipsEmptyTranslations(t *testing.T) {
	orig := docAt(t, 1.0, "one")
	trans := docAt(t, 1.0, "  ")
	assert.Zero(t, orig.Merge(trans))
	assert.Zero(t, orig.Merge(nil))
	assert.False(t, orig.HasTranslation())
}

func TestMergeOverwrites(t *testing.T) {
	orig := docAt(t, 1.0, "one")
	orig.Merge(docAt(t, 1.0, "old"))
	orig.Merge(docAt(t, 1.0, "new"))

	tr, _ := orig.Line(0).Translation()
	assert.Equal(t, "new", tr)
}

func TestAddLinesOwnershipAndOrder(t *testing.T) {
	a := New()
	b := New()

	l := NewLine("x", 3)
	l.Attach(TagTranslation, PlainText("ex"))
	a.AddLines(l, NewLine("y", 1))
	b.AddLines(a.Lines()...)

	assert.Equal(t, "y", a.Line(0).Content)
	assert.True(t, a.Owns(a.Line(0)))
	assert.False(t, b.Owns(a.Line(0)))
	assert.True(t, b.Owns(b.Line(1)))

	b.Line(1).Attach(TagTranslation, PlainText("changed"))
	tr, _ := a.Line(1).Translation()
	assert.Equal(t, "ex", tr)

	a.SetPosition(0, 10)
	assert.Equal(t, "x", a.Line(0).Content)
	assert.Equal(t, "y", a.Line(1).Content)
}

func TestNegativePositionClamped(t *testing.T) {
	doc := New()
	doc.AddLines(Line{Content: "neg", Position: -3, Enabled: true})
	assert.Zero(t, doc.Line(0).Position)
	assert.Zero(t, NewLine("n", -1).Position)
}

func TestCloneIsIndependent(t *testing.T) {
	doc, err := Parse("[ti:t]\n[00:01.00]a\n[00:01.00][tt]<0,0><100,1>")
	require.NoError(t, err)

	c := doc.Clone()
	assert.NotEqual(t, doc.ID, c.ID)
	assert.True(t, c.Owns(c.Line(0)))

	c.AdjustOffset(1.5)
	c.IDTags[IDTitle] = "changed"
	c.Line(0).TimeTags().Tags[0].Index = 9
	c.Line(0).Enabled = false

	assert.Zero(t, doc.Offset)
	assert.Equal(t, "t", doc.IDTags[IDTitle])
	assert.Equal(t, 0, doc.Line(0).TimeTags().Tags[0].Index)
	assert.True(t, doc.Line(0).Enabled)
}

func TestLineString(t *testing.T) {
	l := NewLine("Hello", 65.5)
	assert.Equal(t, "[01:05.500]Hello", l.String())

	l.Attach(TagTranslation, PlainText("你好"))
	assert.Equal(t, "[01:05.500]Hello\n[01:05.500][tr]你好", l.String())
}

func TestLineEqualIgnoresAttachments(t *testing.T) {
	a := NewLine("same", 1)
	b := NewLine("same", 1)
	b.Attach(TagTranslation, PlainText("x"))
	b.Enabled = false

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewLine("same", 2)))
}

func TestDocumentString(t *testing.T) {
	doc := docAt(t, 1.0, "a")
	doc.IDTags[IDArtist] = "Ar"
	doc.IDTags[IDTitle] = "Ti"
	doc.IDTags["re"] = "tool"
	doc.Length = 125
	doc.Offset = 0.3

	want := "[ti:Ti]\n[ar:Ar]\n[re:tool]\n[length:02:05]\n[offset:300]\n[00:01.000]a\n"
	assert.Equal(t, want, doc.String())
}

func TestDisableCredits(t *testing.T) {
	doc, err := Parse("[00:00.00]作词 : 某人\n[00:01.00]Composer: Someone\n[00:02.00]Real line\n[00:03.00]词：x")
	require.NoError(t, err)

	assert.Equal(t, 3, doc.DisableCredits())
	assert.True(t, doc.Line(2).Enabled)
	assert.False(t, doc.Line(0).Enabled)
}
