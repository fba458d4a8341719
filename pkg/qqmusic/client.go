package qqmusic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
)

var logger = log.With().Str("component", "qqmusic").Logger()

const (
	defaultBaseURL = "https://c.y.qq.com"
	artworkURLFmt  = "https://y.gtimg.cn/music/photo_new/T002R300x300M000%s.jpg"
	searchLimit    = 10
)

// SearchResponse QQ音乐搜索API响应
type SearchResponse struct {
	Code int `json:"code"`
	Data struct {
		Song struct {
			List []Song `json:"list"`
		} `json:"song"`
	} `json:"data"`
}

// Song 搜索结果中的歌曲
type Song struct {
	SongMID   string `json:"songmid"`
	SongName  string `json:"songname"`
	AlbumName string `json:"albumname"`
	AlbumMID  string `json:"albummid"`
	Interval  int    `json:"interval"` // 秒
	Singer    []struct {
		Name string `json:"name"`
	} `json:"singer"`
}

// LyricResponse QQ音乐歌词API响应
type LyricResponse struct {
	RetCode int    `json:"retcode"`
	Code    int    `json:"code"`
	Lyric   string `json:"lyric"`
	Trans   string `json:"trans"`
}

// Client QQ音乐客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
}

// Option 客户端选项
type Option func(*Client)

// WithBaseURL 替换 API 地址（测试用）
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithCookie 设置登录 Cookie
func WithCookie(cookie string) Option {
	return func(c *Client) { c.cookie = cookie }
}

// NewClient 创建新的QQ音乐客户端
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source 提供商标识
func (c *Client) Source() music.Source {
	return music.SourceQQMusic
}

// Search 搜索歌曲
func (c *Client) Search(ctx context.Context, req music.SearchRequest) ([]music.Token, error) {
	params := url.Values{}
	params.Set("w", req.Keyword())
	params.Set("p", "1")
	params.Set("n", strconv.Itoa(searchLimit))
	params.Set("format", "json")
	searchURL := c.baseURL + "/soso/fcgi-bin/client_search_cp?" + params.Encode()
	logger.Debug().Str("url", searchURL).Msg("Searching for song")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	c.setHeaders(httpReq)

	body, err := music.Do(c.httpClient, httpReq)
	if err != nil {
		return nil, fmt.Errorf("qqmusic search: %w", err)
	}
	var searchResp SearchResponse
	if err := json.Unmarshal(stripJSONP(body), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if searchResp.Code != 0 {
		return nil, fmt.Errorf("qqmusic search returned code %d", searchResp.Code)
	}

	tokens := make([]music.Token, 0, len(searchResp.Data.Song.List))
	for _, song := range searchResp.Data.Song.List {
		if song.SongMID == "" {
			continue
		}
		tokens = append(tokens, song.token())
	}
	logger.Info().
		Str("request", req.String()).
		Int("results", len(tokens)).
		Msg("Search finished")
	return tokens, nil
}

// Fetch 获取歌词并合并翻译
func (c *Client) Fetch(ctx context.Context, token music.Token) (*lyrics.Document, error) {
	params := url.Values{}
	params.Set("songmid", token.ID)
	params.Set("g_tk", "5381")
	params.Set("format", "json")
	params.Set("nobase64", "1")
	lyricURL := c.baseURL + "/lyric/fcgi-bin/fcg_query_lyric_new.fcg?" + params.Encode()
	logger.Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, lyricURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lyric request: %w", err)
	}
	c.setHeaders(httpReq)

	body, err := music.Do(c.httpClient, httpReq)
	if err != nil {
		return nil, fmt.Errorf("qqmusic lyric %s: %w", token.ID, err)
	}
	var lyricResp LyricResponse
	if err := json.Unmarshal(stripJSONP(body), &lyricResp); err != nil {
		return nil, fmt.Errorf("failed to decode lyric response: %w", err)
	}

	doc, err := lyrics.Parse(html.UnescapeString(lyricResp.Lyric))
	if errors.Is(err, lyrics.ErrNoLines) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lyricResp.Trans != "" {
		if trans, err := lyrics.Parse(html.UnescapeString(lyricResp.Trans)); err == nil {
			doc.Merge(trans)
		}
	}

	if doc.IDTags[lyrics.IDTitle] == "" {
		doc.IDTags[lyrics.IDTitle] = token.Title
	}
	if doc.IDTags[lyrics.IDArtist] == "" {
		doc.IDTags[lyrics.IDArtist] = token.Artist
	}
	if token.Album != "" {
		doc.IDTags[lyrics.IDAlbum] = token.Album
	}
	if token.Duration > 0 {
		doc.Length = token.Duration
	}
	doc.Metadata.ArtworkURL = token.ArtworkURL
	return doc, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Referer", "https://y.qq.com/")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
}

func (s Song) token() music.Token {
	t := music.Token{
		Source:   music.SourceQQMusic,
		ID:       s.SongMID,
		Title:    s.SongName,
		Album:    s.AlbumName,
		Duration: float64(s.Interval),
	}
	if len(s.Singer) > 0 {
		t.Artist = s.Singer[0].Name
	}
	if s.AlbumMID != "" {
		t.ArtworkURL = fmt.Sprintf(artworkURLFmt, s.AlbumMID)
	}
	return t
}

// stripJSONP 去掉 callback(...) 包装
func stripJSONP(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] == '{' || body[0] == '[' {
		return body
	}
	start := bytes.IndexByte(body, '(')
	end := bytes.LastIndexByte(body, ')')
	if start < 0 || end <= start {
		return body
	}
	return body[start+1 : end]
}
