package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
)

var logger = log.With().Str("component", "local-lyrics").Logger()

// Ext 本地歌词文件扩展名
const Ext = ".lrc"

type entry struct {
	path   string
	name   string // 去掉扩展名的文件名
	title  string
	artist string
	album  string
}

// Index 本地 .lrc 文件索引
type Index struct {
	dirs []string

	mu      sync.RWMutex
	entries []entry
}

// NewIndex 创建索引，需调用 Rescan 或 Watch 填充
func NewIndex(dirs ...string) *Index {
	var clean []string
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			clean = append(clean, filepath.Clean(d))
		}
	}
	return &Index{dirs: clean}
}

// Dirs 被索引的目录
func (x *Index) Dirs() []string {
	return append([]string(nil), x.dirs...)
}

// Len 已索引的文件数
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Rescan 重新扫描所有目录，不存在的目录被跳过
func (x *Index) Rescan() error {
	var entries []entry
	for _, dir := range x.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), Ext) {
				return nil
			}
			entries = append(entries, readEntry(path))
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	x.mu.Lock()
	x.entries = entries
	x.mu.Unlock()

	logger.Debug().Strs("dirs", x.dirs).Int("files", len(entries)).Msg("Local lyrics indexed")
	return nil
}

func readEntry(path string) entry {
	e := entry{
		path: path,
		name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("Failed to read lyrics file")
		return e
	}
	if doc, err := lyrics.Parse(string(data)); err == nil {
		e.title = doc.IDTags[lyrics.IDTitle]
		e.artist = doc.IDTags[lyrics.IDArtist]
		e.album = doc.IDTags[lyrics.IDAlbum]
	}
	return e
}

// match 优先使用文件内的 id tag，否则按 "歌手 - 标题" 文件名匹配
func (e entry) match(req music.SearchRequest) bool {
	if req.Title == "" {
		return false
	}
	if e.title != "" {
		if !music.ContainsIgnoreCase(e.title, req.Title) {
			return false
		}
		return req.Artist == "" || e.artist == "" || music.ContainsIgnoreCase(e.artist, req.Artist)
	}

	name := music.NormalizeString(e.name)
	if !strings.Contains(name, music.NormalizeString(req.Title)) {
		return false
	}
	return req.Artist == "" || strings.Contains(name, music.NormalizeString(req.Artist))
}

// Source 提供商标识
func (x *Index) Source() music.Source {
	return music.SourceLocal
}

// Search 在索引中查找匹配的文件
func (x *Index) Search(ctx context.Context, req music.SearchRequest) ([]music.Token, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var tokens []music.Token
	for _, e := range x.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.match(req) {
			continue
		}
		tokens = append(tokens, music.Token{
			Source: music.SourceLocal,
			ID:     e.path,
			Title:  e.title,
			Artist: e.artist,
			Album:  e.album,
		})
	}
	return tokens, nil
}

// Fetch 读取并解析文件
func (x *Index) Fetch(ctx context.Context, token music.Token) (*lyrics.Document, error) {
	data, err := os.ReadFile(token.ID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", token.ID, err)
	}

	doc, err := lyrics.Parse(string(data))
	if errors.Is(err, lyrics.ErrNoLines) {
		return nil, nil
	}
	return doc, err
}
