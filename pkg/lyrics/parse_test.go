package lyrics

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario(t *testing.T) {
	doc, err := Parse("[00:01.000]Hello\n[00:05.500]World")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())

	lines := doc.Lines()
	assert.Equal(t, "Hello", lines[0].Content)
	assert.InDelta(t, 1.0, lines[0].Position, 1e-9)
	assert.Equal(t, "World", lines[1].Content)
	assert.InDelta(t, 5.5, lines[1].Position, 1e-9)
}

func TestParseMultipleTimeTags(t *testing.T) {
	doc, err := Parse("[00:10.00][00:02.5][1:03]Chorus")
	require.NoError(t, err)
	require.Equal(t, 3, doc.Len())

	want := []float64{2.5, 10, 63}
	for i, l := range doc.Lines() {
		assert.Equal(t, "Chorus", l.Content)
		assert.InDelta(t, want[i], l.Position, 1e-9)
		assert.True(t, l.Enabled)
		assert.Equal(t, doc.ID, l.Owner())
	}
}

func TestParseFractions(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"[00:01]a", 1},
		{"[00:01.1]a", 1.1},
		{"[00:01.49]a", 1.49},
		{"[00:01.490]a", 1.49},
		{"[00:01.4901]a", 1.49},
		{"[0:01.25]a", 1.25},
		{"[02:01:25]a", 121.25},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			doc, err := Parse(tt.input)
			require.NoError(t, err)
			require.Equal(t, 1, doc.Len())
			assert.InDelta(t, tt.want, doc.Lines()[0].Position, 1e-9)
		})
	}
}

func TestParseIDTags(t *testing.T) {
	text := "[ti:Song]\n[ar: Artist ]\n[al:Album]\n[by:someone]\n[offset:+500]\n[length:03:25]\n[00:01.00]a"
	doc, err := Parse(text)
	require.NoError(t, err)

	assert.Equal(t, "Song", doc.IDTags[IDTitle])
	assert.Equal(t, "Artist", doc.IDTags[IDArtist])
	assert.Equal(t, "Album", doc.IDTags[IDAlbum])
	assert.Equal(t, "someone", doc.IDTags[IDLrcBy])
	assert.InDelta(t, 0.5, doc.Offset, 1e-9)
	assert.InDelta(t, 205, doc.Length, 1e-9)
	_, hasOffset := doc.IDTags["offset"]
	assert.False(t, hasOffset)
}

func TestParseNoLines(t *testing.T) {
	for _, text := range []string{"", "[ti:only tags]\n[ar:x]", "just prose\nmore prose"} {
		doc, err := Parse(text)
		assert.ErrorIs(t, err, ErrNoLines)
		assert.Nil(t, doc)
	}
}

func TestParseSkipsGarbage(t *testing.T) {
	doc, err := Parse("garbage\n[00:01.00]one\n<html>\n[xx]\n\r\n[00:02.00]two\r\n")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())
	assert.Equal(t, "two", doc.Lines()[1].Content)
}

func TestParseUnorderedSource(t *testing.T) {
	doc, err := Parse("[00:09.00]c\n[00:01.00]a\n[00:05.00]b")
	require.NoError(t, err)

	var contents []string
	for _, l := range doc.Lines() {
		contents = append(contents, l.Content)
	}
	assert.Equal(t, []string{"a", "b", "c"}, contents)
}

func TestParseAttachments(t *testing.T) {
	text := "[00:01.000]Hello\n[00:01.000][tr]你好\n[00:01.000][tt]<0,0><500,3><1000>\n[00:03.000]Bye\n[00:03.000][tr:ja]さよなら\n[00:07.000][tr]orphan"
	doc, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())

	hello := doc.Line(0)
	tr, ok := hello.Translation()
	require.True(t, ok)
	assert.Equal(t, "你好", tr)

	tt := hello.TimeTags()
	require.NotNil(t, tt)
	require.Len(t, tt.Tags, 2)
	assert.Equal(t, 3, tt.Tags[1].Index)
	assert.InDelta(t, 0.5, tt.Tags[1].Offset, 1e-9)
	assert.InDelta(t, 1.0, tt.Duration, 1e-9)

	bye := doc.Line(1)
	tr, ok = bye.Translation()
	require.True(t, ok)
	assert.Equal(t, "さよなら", tr)
	assert.Contains(t, bye.Attachments, TranslationTag("ja"))
}

type timedContent struct {
	pos     int64
	content string
}

func contentSet(doc *Document) []timedContent {
	var out []timedContent
	for _, l := range doc.Lines() {
		out = append(out, timedContent{secondsToMillis(l.Position), l.Content})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].pos != out[j].pos {
			return out[i].pos < out[j].pos
		}
		return out[i].content < out[j].content
	})
	return out
}

func TestRoundTrip(t *testing.T) {
	text := "[ti:Song]\n[ar:Artist]\n[offset:-250]\n[00:01.5][00:30.25]Hook\n[0:05]Verse\n[00:05][tr]Strophe\n[00:12.345]\n[01:02.003]End"
	doc, err := Parse(text)
	require.NoError(t, err)

	again, err := Parse(doc.String())
	require.NoError(t, err)

	assert.Equal(t, contentSet(doc), contentSet(again))
	assert.Equal(t, doc.IDTags, again.IDTags)
	assert.InDelta(t, doc.Offset, again.Offset, 1e-9)

	tr, ok := again.Line(1).Translation()
	require.True(t, ok)
	assert.Equal(t, "Strophe", tr)
}

func TestTimeTagsString(t *testing.T) {
	tt, err := ParseTimeTags("<800,2><0,0><350,1><1200>")
	require.NoError(t, err)
	assert.Equal(t, "<0,0><350,1><800,2><1200>", tt.String())

	_, err = ParseTimeTags("no tags")
	assert.Error(t, err)
}

func TestRoundTripSharedTimestamp(t *testing.T) {
	doc := New()
	lead := NewLine("Lead", 1.0)
	lead.Attach(TagTranslation, PlainText("lead-tr"))
	backing := NewLine("Backing", 1.0)
	backing.Attach(TagTranslation, PlainText("backing-tr"))
	doc.AddLines(lead, backing)

	again, err := Parse(doc.String())
	require.NoError(t, err)
	require.Equal(t, 2, again.Len())

	want := map[string]string{"Lead": "lead-tr", "Backing": "backing-tr"}
	for _, l := range again.Lines() {
		tr, ok := l.Translation()
		require.True(t, ok, l.Content)
		assert.Equal(t, want[l.Content], tr, l.Content)
	}
}

func TestParseAttachmentBeforeLine(t *testing.T) {
	doc, err := Parse("[00:01.000][tr]hola\n[00:01.000]hello\n[00:01.000]again")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())

	tr, ok := doc.Line(0).Translation()
	require.True(t, ok)
	assert.Equal(t, "hola", tr)

	_, ok = doc.Line(1).Translation()
	assert.False(t, ok)
}

func TestParseAttachmentMultiTagGroup(t *testing.T) {
	doc, err := Parse("[00:01.00][00:05.00]Hook\n[00:01.00][00:05.00][tr]Refrain")
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())
	for _, l := range doc.Lines() {
		tr, ok := l.Translation()
		require.True(t, ok)
		assert.Equal(t, "Refrain", tr)
	}
}
