package music

import (
	"context"
	"fmt"
	"strings"

	"lyrics-backend/pkg/lyrics"
)

// SearchRequest 歌词搜索请求
type SearchRequest struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // 歌曲时长（秒），0 表示未知
}

// Keyword 拼接搜索关键词
func (r SearchRequest) Keyword() string {
	return strings.TrimSpace(r.Title + " " + r.Artist)
}

func (r SearchRequest) String() string {
	return fmt.Sprintf("%s - %s", r.Artist, r.Title)
}

// Token 搜索结果条目，Fetch 时交回给产生它的提供商
type Token struct {
	Source     Source
	ID         string
	Title      string
	Artist     string
	Album      string
	Duration   float64
	ArtworkURL string

	// Payload 提供商私有数据（如 kugou 的 accesskey）
	Payload any
}

// Provider 歌词提供商接口
type Provider interface {
	// Source 提供商标识
	Source() Source

	// Search 搜索歌曲，返回按提供商自身排序的候选
	Search(ctx context.Context, req SearchRequest) ([]Token, error)

	// Fetch 获取候选对应的歌词，没有可用歌词时返回 nil, nil
	Fetch(ctx context.Context, token Token) (*lyrics.Document, error)
}

// Stamp 把候选信息写入歌词文档的元数据，缺失的 id tag 用候选补齐
func Stamp(doc *lyrics.Document, token Token) *lyrics.Document {
	if doc == nil {
		return nil
	}
	doc.Metadata.Source = string(token.Source)
	doc.Metadata.ProviderToken = token.ID
	if doc.Metadata.ArtworkURL == "" {
		doc.Metadata.ArtworkURL = token.ArtworkURL
	}
	setIfEmpty(doc, lyrics.IDTitle, token.Title)
	setIfEmpty(doc, lyrics.IDArtist, token.Artist)
	setIfEmpty(doc, lyrics.IDAlbum, token.Album)
	if doc.Length == 0 && token.Duration > 0 {
		doc.Length = token.Duration
	}
	return doc
}

func setIfEmpty(doc *lyrics.Document, tag lyrics.IDTag, value string) {
	if value == "" || strings.TrimSpace(doc.IDTags[tag]) != "" {
		return
	}
	doc.IDTags[tag] = value
}
