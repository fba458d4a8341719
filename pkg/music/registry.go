package music

import (
	"errors"
	"fmt"
	"strings"
)

// Source 歌词来源
type Source string

const (
	// SourceNetEase 网易云音乐
	SourceNetEase Source = "netease"
	// SourceQQMusic QQ音乐
	SourceQQMusic Source = "qqmusic"
	// SourceKugou 酷狗音乐
	SourceKugou Source = "kugou"
	// SourceLRCLib LRCLib歌词库
	SourceLRCLib Source = "lrclib"
	// SourceLocal 本地 .lrc 文件
	SourceLocal Source = "local"
)

// AllSources 所有已知来源，顺序即默认优先级
var AllSources = []Source{
	SourceNetEase,
	SourceQQMusic,
	SourceKugou,
	SourceLRCLib,
	SourceLocal,
}

// ErrNoProviders 没有任何可用的提供商
var ErrNoProviders = errors.New("no lyrics providers available")

// ParseSource 根据名称获取来源
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "netease", "网易云", "163":
		return SourceNetEase, nil
	case "qqmusic", "qq", "腾讯":
		return SourceQQMusic, nil
	case "kugou", "酷狗":
		return SourceKugou, nil
	case "lrclib":
		return SourceLRCLib, nil
	case "local", "file", "本地":
		return SourceLocal, nil
	default:
		return "", fmt.Errorf("unknown provider name: %s", name)
	}
}

// Registry 按来源登记的提供商集合，保留登记顺序
type Registry struct {
	providers map[Source]Provider
	order     []Source
}

// NewRegistry 创建提供商注册表
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Source]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register 登记提供商，同一来源后登记的覆盖先登记的
func (r *Registry) Register(p Provider) {
	src := p.Source()
	if _, ok := r.providers[src]; !ok {
		r.order = append(r.order, src)
	}
	r.providers[src] = p
}

// Get 获取指定来源的提供商
func (r *Registry) Get(src Source) (Provider, bool) {
	p, ok := r.providers[src]
	return p, ok
}

// Providers 按登记顺序返回所有提供商
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, src := range r.order {
		out = append(out, r.providers[src])
	}
	return out
}

// Sources 按登记顺序返回来源
func (r *Registry) Sources() []Source {
	return append([]Source(nil), r.order...)
}

// Len 提供商数量
func (r *Registry) Len() int {
	return len(r.order)
}
