package music

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyrics-backend/pkg/lyrics"
)

// mockProvider 模拟歌词提供商
type mockProvider struct {
	source  Source
	tokens  []Token
	lrc     map[string]string
	err     error
	delay   time.Duration
	block   chan struct{} // 非 nil 时忽略 ctx 一直阻塞
	fetches atomic.Int32
}

func (m *mockProvider) Source() Source { return m.source }

func (m *mockProvider) Search(ctx context.Context, req SearchRequest) ([]Token, error) {
	if m.block != nil {
		<-m.block
		return m.tokens, nil
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.tokens, nil
}

func (m *mockProvider) Fetch(ctx context.Context, token Token) (*lyrics.Document, error) {
	m.fetches.Add(1)
	text, ok := m.lrc[token.ID]
	if !ok {
		return nil, errors.New("not found")
	}
	return lyrics.Parse(text)
}

func tokensFor(src Source, ids ...string) []Token {
	out := make([]Token, len(ids))
	for i, id := range ids {
		out[i] = Token{Source: src, ID: id, Title: "Song " + id}
	}
	return out
}

func collect(ch <-chan Result) []Result {
	var out []Result
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestSearchSkipsTimedOutProvider(t *testing.T) {
	slow := &mockProvider{source: SourceNetEase, delay: time.Minute, tokens: tokensFor(SourceNetEase, "x")}
	fast := &mockProvider{source: SourceLRCLib, tokens: tokensFor(SourceLRCLib, "a", "b", "c")}

	agg := NewAggregator([]Provider{slow, fast}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	results := collect(agg.Search(context.Background(), SearchRequest{Title: "t"}))

	require.Len(t, results, 1)
	assert.Equal(t, SourceLRCLib, results[0].Source)
	assert.Len(t, results[0].Tokens, 3)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSearchUnresponsiveProviderDoesNotBlock(t *testing.T) {
	stuck := &mockProvider{source: SourceQQMusic, block: make(chan struct{})}
	defer close(stuck.block)
	ok := &mockProvider{source: SourceKugou, tokens: tokensFor(SourceKugou, "1")}

	agg := NewAggregator([]Provider{stuck, ok}, WithTimeout(50*time.Millisecond))

	done := make(chan []Result)
	go func() { done <- collect(agg.Search(context.Background(), SearchRequest{Title: "t"})) }()

	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.Equal(t, SourceKugou, results[0].Source)
	case <-time.After(5 * time.Second):
		t.Fatal("aggregation blocked on unresponsive provider")
	}
}

func TestSearchDropsFailedProviders(t *testing.T) {
	bad := &mockProvider{source: SourceNetEase, err: fmt.Errorf("boom")}
	empty := &mockProvider{source: SourceLocal}
	good := &mockProvider{source: SourceKugou, tokens: tokensFor(SourceKugou, "1", "2")}

	results := collect(NewAggregator([]Provider{bad, empty, good}).Search(context.Background(), SearchRequest{}))
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Rank)
}

func TestSearchCancellation(t *testing.T) {
	slow := &mockProvider{source: SourceNetEase, delay: time.Minute, tokens: tokensFor(SourceNetEase, "x")}
	agg := NewAggregator([]Provider{slow}, WithTimeout(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	ch := agg.Search(ctx, SearchRequest{})
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestSearchLyricsFetchLimit(t *testing.T) {
	p := &mockProvider{
		source: SourceNetEase,
		tokens: tokensFor(SourceNetEase, "1", "2", "3", "4"),
		lrc: map[string]string{
			"1": "[00:01.00]one",
			"3": "[00:01.00]three",
			"4": "[00:01.00]four",
		},
	}

	results := collect(NewAggregator([]Provider{p}, WithFetchLimit(3)).SearchLyrics(context.Background(), SearchRequest{}))
	require.Len(t, results, 1)
	assert.EqualValues(t, 3, p.fetches.Load())
	require.Len(t, results[0].Documents, 2)

	doc := results[0].Documents[0]
	assert.Equal(t, "netease", doc.Metadata.Source)
	assert.Equal(t, "1", doc.Metadata.ProviderToken)
	assert.Equal(t, "Song 1", doc.IDTags[lyrics.IDTitle])
}

func TestBestPrefersQuality(t *testing.T) {
	body := "[00:01.00]a\n[00:02.00]b\n[00:03.00]c\n[00:04.00]d\n[00:05.00]e\n[00:06.00]f"
	wrong := &mockProvider{
		source: SourceNetEase,
		tokens: []Token{{ID: "w", Title: "Other", Artist: "Nobody"}},
		lrc:    map[string]string{"w": body},
	}
	right := &mockProvider{
		source: SourceLRCLib,
		tokens: []Token{{ID: "r", Title: "Hello", Artist: "Adele", Duration: 295}},
		lrc:    map[string]string{"r": body},
	}

	req := SearchRequest{Title: "Hello", Artist: "Adele", Duration: 296}
	doc, err := NewAggregator([]Provider{wrong, right}).Best(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "lrclib", doc.Metadata.Source)
}

func TestBestNoResults(t *testing.T) {
	doc, err := NewAggregator([]Provider{&mockProvider{source: SourceLocal}}).Best(context.Background(), SearchRequest{})
	assert.NoError(t, err)
	assert.Nil(t, doc)

	_, err = NewAggregator(nil).Best(context.Background(), SearchRequest{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestRegistry(t *testing.T) {
	a := &mockProvider{source: SourceKugou}
	b := &mockProvider{source: SourceNetEase}
	c := &mockProvider{source: SourceKugou}

	r := NewRegistry(a, b, c)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []Source{SourceKugou, SourceNetEase}, r.Sources())

	got, ok := r.Get(SourceKugou)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = r.Get(SourceLocal)
	assert.False(t, ok)
}

func TestParseSource(t *testing.T) {
	for _, src := range AllSources {
		got, err := ParseSource(string(src))
		require.NoError(t, err)
		assert.Equal(t, src, got)
	}

	got, err := ParseSource("网易云")
	require.NoError(t, err)
	assert.Equal(t, SourceNetEase, got)

	_, err = ParseSource("spotify")
	assert.Error(t, err)
}

func TestQuality(t *testing.T) {
	doc, err := lyrics.Parse("[ti:Hello]\n[ar:Adele]\n[00:01.00]a\n[00:02.00]b\n[00:03.00]c\n[00:04.00]d\n[00:05.00]e")
	require.NoError(t, err)
	doc.Length = 295

	exact := Quality(doc, SearchRequest{Title: "hello", Artist: "ADELE", Duration: 294})
	partial := Quality(doc, SearchRequest{Title: "Hello (Live)", Artist: "Adele", Duration: 400})
	miss := Quality(doc, SearchRequest{Title: "Bye", Artist: "Someone"})

	assert.Greater(t, exact, partial)
	assert.Greater(t, partial, miss)
	assert.Zero(t, Quality(nil, SearchRequest{}))
}
