package qqmusic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/soso/fcgi-bin/client_search_cp", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "晴天 周杰伦", r.URL.Query().Get("w"))
		w.Write([]byte(`{"code":0,"data":{"song":{"list":[
			{"songmid":"mid1","songname":"晴天","albumname":"叶惠美","albummid":"alb1","interval":269,"singer":[{"name":"周杰伦"}]},
			{"songmid":"","songname":"broken"}
		]}}}`))
	})
	mux.HandleFunc("/lyric/fcgi-bin/fcg_query_lyric_new.fcg", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://y.qq.com/", r.Header.Get("Referer"))
		assert.Equal(t, "1", r.URL.Query().Get("nobase64"))
		switch r.URL.Query().Get("songmid") {
		case "mid1":
			w.Write([]byte(`MusicJsonCallback({"retcode":0,"code":0,
				"lyric":"[ti&#58;晴天]\n[00&#58;01.00]故事的小黄花\n[00&#58;04.00]从出生那年就飘着",
				"trans":"[00&#58;01.00]The little yellow flower"})`))
		default:
			w.Write([]byte(`{"retcode":-1901,"code":-1901,"lyric":""}`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch(t *testing.T) {
	c := NewClient(WithBaseURL(newTestServer(t).URL))

	tokens, err := c.Search(context.Background(), music.SearchRequest{Title: "晴天", Artist: "周杰伦"})
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	tok := tokens[0]
	assert.Equal(t, "mid1", tok.ID)
	assert.Equal(t, "周杰伦", tok.Artist)
	assert.Equal(t, "叶惠美", tok.Album)
	assert.InDelta(t, 269, tok.Duration, 1e-9)
	assert.Equal(t, "https://y.gtimg.cn/music/photo_new/T002R300x300M000alb1.jpg", tok.ArtworkURL)
}

func TestFetchUnescapesAndMerges(t *testing.T) {
	c := NewClient(WithBaseURL(newTestServer(t).URL))

	doc, err := c.Fetch(context.Background(), music.Token{ID: "mid1", Title: "晴天", Artist: "周杰伦", Album: "叶惠美", Duration: 269})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, 2, doc.Len())

	assert.Equal(t, "故事的小黄花", doc.Line(0).Content)
	tr, ok := doc.Line(0).Translation()
	require.True(t, ok)
	assert.Equal(t, "The little yellow flower", tr)
	_, ok = doc.Line(1).Translation()
	assert.False(t, ok)

	assert.Equal(t, "晴天", doc.IDTags[lyrics.IDTitle])
	assert.Equal(t, "叶惠美", doc.IDTags[lyrics.IDAlbum])
	assert.InDelta(t, 269, doc.Length, 1e-9)
}

func TestFetchMissing(t *testing.T) {
	c := NewClient(WithBaseURL(newTestServer(t).URL))

	doc, err := c.Fetch(context.Background(), music.Token{ID: "nope"})
	assert.NoError(t, err)
	assert.Nil(t, doc)
}

func TestStripJSONP(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(stripJSONP([]byte(` cb({"a":1}) `))))
	assert.Equal(t, `{"a":1}`, string(stripJSONP([]byte(`{"a":1}`))))
}
