package netease

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/pc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "http://music.163.com/", r.Header.Get("Referer"))
		assert.Equal(t, "MUSIC_U=abc", r.Header.Get("Cookie"))
		assert.Equal(t, "Hello Adele", r.URL.Query().Get("s"))
		w.Write([]byte(`{"code":200,"result":{"songs":[
			{"id":2,"name":"Hello","duration":295000,"artists":[{"name":"Adele"}],"album":{"name":"25","picUrl":"http://p/2.jpg"}},
			{"id":1,"name":"Hello (Live)","duration":300000,"artists":[{"name":"Adele"}],"album":{"name":"Live"}}
		]}}`))
	})
	mux.HandleFunc("/api/song/lyric", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "2":
			w.Write([]byte(`{"code":200,
				"lrc":{"lyric":"[ti:wrong]\n[00:01.00]Hello\n[00:05.50]It's me"},
				"tlyric":{"lyric":"[00:01.00]你好\n[00:05.50]是我"},
				"lyricUser":{"nickname":"uploader"}}`))
		case "3":
			w.Write([]byte(`{"code":200,"lrc":{"lyric":""},"tlyric":{"lyric":""}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchPreservesRank(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(WithBaseURL(srv.URL), WithCookie("MUSIC_U=abc"))

	tokens, err := c.Search(context.Background(), music.SearchRequest{Title: "Hello", Artist: "Adele"})
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, "2", tokens[0].ID)
	assert.Equal(t, "Adele", tokens[0].Artist)
	assert.Equal(t, "25", tokens[0].Album)
	assert.InDelta(t, 295, tokens[0].Duration, 1e-9)
	assert.Equal(t, "http://p/2.jpg", tokens[0].ArtworkURL)
	assert.Equal(t, "1", tokens[1].ID)
}

func TestFetchMergesTranslation(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(WithBaseURL(srv.URL), WithCookie("MUSIC_U=abc"))

	token := music.Token{ID: "2", Title: "Hello", Artist: "Adele", Album: "25", Duration: 295, ArtworkURL: "http://p/2.jpg"}
	doc, err := c.Fetch(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, 2, doc.Len())

	tr, ok := doc.Line(1).Translation()
	require.True(t, ok)
	assert.Equal(t, "是我", tr)

	assert.Equal(t, "Hello", doc.IDTags[lyrics.IDTitle])
	assert.Equal(t, "uploader", doc.IDTags[lyrics.IDLrcBy])
	assert.InDelta(t, 295, doc.Length, 1e-9)
	assert.Equal(t, "http://p/2.jpg", doc.Metadata.ArtworkURL)
}

func TestFetchNoLyrics(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(WithBaseURL(srv.URL))

	doc, err := c.Fetch(context.Background(), music.Token{ID: "3"})
	assert.NoError(t, err)
	assert.Nil(t, doc)

	_, err = c.Fetch(context.Background(), music.Token{ID: "404"})
	var se *music.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

// TestTimeout 测试超时机制
func TestTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	c := NewClient(WithBaseURL(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Search(ctx, music.SearchRequest{Title: "x"})
	assert.Error(t, err, "预期请求超时失败")
}
