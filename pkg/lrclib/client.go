package lrclib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
)

var logger = log.With().Str("component", "lrclib").Logger()

// DefaultBaseURL LRCLib 公共实例
const DefaultBaseURL = "https://lrclib.net/api"

// Client LRCLib客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Response LRCLib API响应结构
type Response struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// NewClient 创建新的LRCLib客户端，baseURL 为空时使用公共实例
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Source 提供商标识
func (c *Client) Source() music.Source {
	return music.SourceLRCLib
}

// Search 搜索歌词，只保留带时间轴的结果，按匹配度排序
func (c *Client) Search(ctx context.Context, req music.SearchRequest) ([]music.Token, error) {
	params := url.Values{}
	params.Set("track_name", req.Title)
	if req.Artist != "" {
		params.Set("artist_name", req.Artist)
	}
	if req.Album != "" {
		params.Set("album_name", req.Album)
	}
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var responses []Response
	if err := music.DoJSON(c.httpClient, httpReq, &responses); err != nil {
		return nil, fmt.Errorf("lrclib search: %w", err)
	}
	logger.Info().
		Str("request", req.String()).
		Int("results", len(responses)).
		Msg("Search finished")

	synced := responses[:0]
	for _, r := range responses {
		if !r.Instrumental && strings.TrimSpace(r.SyncedLyrics) != "" {
			synced = append(synced, r)
		}
	}
	rank(synced, req)

	tokens := make([]music.Token, 0, len(synced))
	for i := range synced {
		tokens = append(tokens, synced[i].token())
	}
	return tokens, nil
}

// Fetch 获取歌词。搜索结果自带歌词时不再发起请求
func (c *Client) Fetch(ctx context.Context, token music.Token) (*lyrics.Document, error) {
	resp, ok := token.Payload.(*Response)
	if !ok || resp.SyncedLyrics == "" {
		var err error
		if resp, err = c.get(ctx, token.ID); err != nil {
			return nil, err
		}
	}
	if resp.Instrumental || resp.SyncedLyrics == "" {
		return nil, nil
	}

	doc, err := lyrics.Parse(resp.SyncedLyrics)
	if errors.Is(err, lyrics.ErrNoLines) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.IDTags[lyrics.IDTitle] = resp.TrackName
	doc.IDTags[lyrics.IDArtist] = resp.ArtistName
	if resp.AlbumName != "" {
		doc.IDTags[lyrics.IDAlbum] = resp.AlbumName
	}
	doc.Length = resp.Duration
	return doc, nil
}

func (c *Client) get(ctx context.Context, id string) (*Response, error) {
	getURL := fmt.Sprintf("%s/get/%s", c.baseURL, url.PathEscape(id))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var resp Response
	if err := music.DoJSON(c.httpClient, httpReq, &resp); err != nil {
		return nil, fmt.Errorf("lrclib get %s: %w", id, err)
	}
	return &resp, nil
}

func (r *Response) token() music.Token {
	return music.Token{
		Source:   music.SourceLRCLib,
		ID:       strconv.FormatInt(r.ID, 10),
		Title:    r.TrackName,
		Artist:   r.ArtistName,
		Album:    r.AlbumName,
		Duration: r.Duration,
		Payload:  r,
	}
}

// rank 标题+艺术家匹配优先，其次只匹配标题，同级按时长误差排序
func rank(responses []Response, req music.SearchRequest) {
	tier := func(r *Response) int {
		title := music.ContainsIgnoreCase(r.TrackName, req.Title)
		artist := req.Artist == "" || music.ContainsIgnoreCase(r.ArtistName, req.Artist)
		switch {
		case title && artist:
			return 0
		case title:
			return 1
		default:
			return 2
		}
	}
	diff := func(r *Response) float64 {
		if req.Duration <= 0 {
			return 0
		}
		return math.Abs(r.Duration - req.Duration)
	}

	sort.SliceStable(responses, func(i, j int) bool {
		ti, tj := tier(&responses[i]), tier(&responses[j])
		if ti != tj {
			return ti < tj
		}
		return diff(&responses[i]) < diff(&responses[j])
	})
}
