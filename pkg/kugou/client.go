package kugou

import (
	"context"
	"encoding/base64"
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

var logger = log.With().Str("component", "kugou").Logger()

const defaultBaseURL = "http://lyrics.kugou.com"

// SearchResponse 酷狗歌词搜索API响应
type SearchResponse struct {
	Status     int         `json:"status"`
	Candidates []Candidate `json:"candidates"`
}

// Candidate 搜索候选
type Candidate struct {
	ID        string `json:"id"`
	AccessKey string `json:"accesskey"`
	Song      string `json:"song"`
	Singer    string `json:"singer"`
	Duration  int64  `json:"duration"` // 毫秒
}

// DownloadResponse 酷狗歌词下载API响应
type DownloadResponse struct {
	Status  int    `json:"status"`
	Format  string `json:"fmt"`
	Content string `json:"content"` // base64 的 KRC
}

// Client 酷狗音乐客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option 客户端选项
type Option func(*Client)

// WithBaseURL 替换 API 地址（测试用）
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// NewClient 创建新的酷狗音乐客户端
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
	return music.SourceKugou
}

// Search 搜索歌词候选
func (c *Client) Search(ctx context.Context, req music.SearchRequest) ([]music.Token, error) {
	params := url.Values{}
	params.Set("ver", "1")
	params.Set("man", "yes")
	params.Set("client", "pc")
	params.Set("keyword", req.Keyword())
	if req.Duration > 0 {
		params.Set("duration", strconv.FormatInt(int64(req.Duration*1000), 10))
	}
	searchURL := c.baseURL + "/search?" + params.Encode()
	logger.Debug().Str("url", searchURL).Msg("Searching for lyrics")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	var searchResp SearchResponse
	if err := music.DoJSON(c.httpClient, httpReq, &searchResp); err != nil {
		return nil, fmt.Errorf("kugou search: %w", err)
	}

	tokens := make([]music.Token, 0, len(searchResp.Candidates))
	for _, cand := range searchResp.Candidates {
		tokens = append(tokens, music.Token{
			Source:   music.SourceKugou,
			ID:       cand.ID,
			Title:    cand.Song,
			Artist:   cand.Singer,
			Duration: float64(cand.Duration) / 1000,
			Payload:  cand.AccessKey,
		})
	}
	logger.Info().
		Str("request", req.String()).
		Int("results", len(tokens)).
		Msg("Search finished")
	return tokens, nil
}

// Fetch 下载并解密 KRC 歌词
func (c *Client) Fetch(ctx context.Context, token music.Token) (*lyrics.Document, error) {
	accessKey, _ := token.Payload.(string)
	if accessKey == "" {
		return nil, fmt.Errorf("kugou token %s has no access key", token.ID)
	}

	params := url.Values{}
	params.Set("ver", "1")
	params.Set("client", "pc")
	params.Set("id", token.ID)
	params.Set("accesskey", accessKey)
	params.Set("fmt", "krc")
	params.Set("charset", "utf8")
	downloadURL := c.baseURL + "/download?" + params.Encode()
	logger.Debug().Str("url", downloadURL).Msg("Downloading lyrics")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	var dl DownloadResponse
	if err := music.DoJSON(c.httpClient, httpReq, &dl); err != nil {
		return nil, fmt.Errorf("kugou download %s: %w", token.ID, err)
	}
	if dl.Content == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(dl.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode krc content: %w", err)
	}
	text, err := DecryptKRC(data)
	if err != nil {
		return nil, err
	}

	doc, err := ParseKRC(text)
	if errors.Is(err, lyrics.ErrNoLines) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	doc.IDTags[lyrics.IDTitle] = token.Title
	doc.IDTags[lyrics.IDArtist] = token.Artist
	if token.Duration > 0 {
		doc.Length = token.Duration
	}
	return doc, nil
}
