package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lyrics-backend/pkg/ai"
	"lyrics-backend/pkg/music"
	"lyrics-backend/pkg/querycache"
)

// Normalizer 把播放器给出的标题整理成可搜索的请求。
// ok 为 false 表示不是歌曲，不需要搜索歌词。
type Normalizer interface {
	Normalize(ctx context.Context, req music.SearchRequest) (out music.SearchRequest, ok bool, err error)
}

// PassThrough 原样返回
type PassThrough struct{}

func (PassThrough) Normalize(ctx context.Context, req music.SearchRequest) (music.SearchRequest, bool, error) {
	return req, strings.TrimSpace(req.Title) != "", nil
}

// SongInfo AI 返回的歌曲信息
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式，并将繁体中文转换为简体。 媒体标题是：%s`, title)
}

// AINormalizer 用大模型从媒体标题中提取歌名和歌手，结果记在 querycache 里
type AINormalizer struct {
	client ai.AiInterface
	memo   *querycache.Cache // 可以为 nil
}

func NewAINormalizer(client ai.AiInterface, memo *querycache.Cache) *AINormalizer {
	return &AINormalizer{client: client, memo: memo}
}

func (n *AINormalizer) Normalize(ctx context.Context, req music.SearchRequest) (music.SearchRequest, bool, error) {
	query := mediaTitle(req)
	if query == "" {
		return req, false, nil
	}

	raw, cached := n.lookup(query)
	if !cached {
		var err error
		raw, err = n.client.HandleText(ctx, formatQuerySong(query))
		if err != nil {
			return req, false, fmt.Errorf("failed to query %s: %w", n.client.Name(), err)
		}
	}

	info, err := parseSongInfo(raw)
	if err != nil {
		return req, false, fmt.Errorf("failed to parse %s response: %w", n.client.Name(), err)
	}
	if !cached && n.memo != nil {
		if err := n.memo.Add(query, raw); err != nil {
			logger.Warn().Err(err).Msg("Failed to memoize song info")
		}
	}

	if !info.IsSong {
		logger.Info().Str("query", query).Msg("Media is not a song")
		return req, false, nil
	}

	out := req
	if info.Title != "" {
		out.Title = info.Title
	}
	if info.Artist != "" {
		out.Artist = info.Artist
	}
	logger.Info().
		Str("query", query).
		Str("title", out.Title).
		Str("artist", out.Artist).
		Bool("cached", cached).
		Msg("Normalized song info")
	return out, true, nil
}

func (n *AINormalizer) lookup(query string) (string, bool) {
	if n.memo == nil {
		return "", false
	}
	return n.memo.Get(query)
}

// mediaTitle 还原播放器显示的标题，歌手为空时只有标题
func mediaTitle(req music.SearchRequest) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return ""
	}
	if artist := strings.TrimSpace(req.Artist); artist != "" {
		return artist + " - " + title
	}
	return title
}

// parseSongInfo 容忍模型偶尔包上的 ``` 代码块
func parseSongInfo(raw string) (SongInfo, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var info SongInfo
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &info); err != nil {
		return SongInfo{}, err
	}
	return info, nil
}
