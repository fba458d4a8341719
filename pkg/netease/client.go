package netease

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
)

var logger = log.With().Str("component", "netease").Logger()

const (
	defaultBaseURL = "http://music.163.com"
	searchLimit    = 10
)

// SearchResponse 网易云搜索API响应
type SearchResponse struct {
	Code   int `json:"code"`
	Result struct {
		Songs []Song `json:"songs"`
	} `json:"result"`
}

// Song 搜索结果中的歌曲
type Song struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Duration int64  `json:"duration"` // 毫秒
	Artists  []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		PicURL string `json:"picUrl"`
	} `json:"album"`
}

// LyricResponse 网易云歌词API响应
type LyricResponse struct {
	Code int `json:"code"`
	Lrc  struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
	LyricUser *struct {
		Nickname string `json:"nickname"`
	} `json:"lyricUser"`
}

// Client 网易云音乐客户端
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

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient 创建新的网易云音乐客户端
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
	return music.SourceNetEase
}

// Search 搜索歌曲，保留网易云返回的排序
func (c *Client) Search(ctx context.Context, req music.SearchRequest) ([]music.Token, error) {
	params := url.Values{}
	params.Set("s", req.Keyword())
	params.Set("offset", "0")
	params.Set("limit", strconv.Itoa(searchLimit))
	params.Set("type", "1")
	searchURL := c.baseURL + "/api/search/pc?" + params.Encode()
	logger.Debug().Str("url", searchURL).Msg("Searching for song")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	c.setHeaders(httpReq)

	var searchResp SearchResponse
	if err := music.DoJSON(c.httpClient, httpReq, &searchResp); err != nil {
		return nil, fmt.Errorf("netease search: %w", err)
	}

	tokens := make([]music.Token, 0, len(searchResp.Result.Songs))
	for _, song := range searchResp.Result.Songs {
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
	params.Set("id", token.ID)
	params.Set("lv", "1")
	params.Set("kv", "1")
	params.Set("tv", "-1")
	lyricURL := c.baseURL + "/api/song/lyric?" + params.Encode()
	logger.Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, lyricURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lyric request: %w", err)
	}
	c.setHeaders(httpReq)

	var lyricResp LyricResponse
	if err := music.DoJSON(c.httpClient, httpReq, &lyricResp); err != nil {
		return nil, fmt.Errorf("netease lyric %s: %w", token.ID, err)
	}

	doc, err := lyrics.Parse(lyricResp.Lrc.Lyric)
	if errors.Is(err, lyrics.ErrNoLines) {
		// 纯音乐或无歌词
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lyricResp.Tlyric.Lyric != "" {
		if trans, err := lyrics.Parse(lyricResp.Tlyric.Lyric); err == nil {
			n := doc.Merge(trans)
			logger.Debug().Str("id", token.ID).Int("merged", n).Msg("Merged translation")
		}
	}

	// 网易云的标签以搜索结果为准
	setTag(doc, lyrics.IDTitle, token.Title)
	setTag(doc, lyrics.IDArtist, token.Artist)
	setTag(doc, lyrics.IDAlbum, token.Album)
	if lyricResp.LyricUser != nil {
		setTag(doc, lyrics.IDLrcBy, lyricResp.LyricUser.Nickname)
	}
	if token.Duration > 0 {
		doc.Length = token.Duration
	}
	doc.Metadata.ArtworkURL = token.ArtworkURL
	return doc, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Referer", "http://music.163.com/")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
}

func (s Song) token() music.Token {
	t := music.Token{
		Source:     music.SourceNetEase,
		ID:         strconv.FormatInt(s.ID, 10),
		Title:      s.Name,
		Album:      s.Album.Name,
		Duration:   float64(s.Duration) / 1000,
		ArtworkURL: s.Album.PicURL,
	}
	if len(s.Artists) > 0 {
		t.Artist = s.Artists[0].Name
	}
	return t
}

func setTag(doc *lyrics.Document, tag lyrics.IDTag, value string) {
	if value != "" {
		doc.IDTags[tag] = value
	}
}
