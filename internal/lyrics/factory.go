package lyrics

import (
	"context"
	"fmt"

	"lyrics-backend/internal/config"
	"lyrics-backend/pkg/kugou"
	"lyrics-backend/pkg/local"
	"lyrics-backend/pkg/lrclib"
	"lyrics-backend/pkg/music"
	"lyrics-backend/pkg/netease"
	"lyrics-backend/pkg/qqmusic"
)

// CreateProvider 根据来源创建提供商
func CreateProvider(src music.Source, cfg config.SearchConfig, cacheDir string) (music.Provider, error) {
	switch src {
	case music.SourceNetEase:
		return netease.NewClient(netease.WithCookie(cfg.NeteaseCookie)), nil
	case music.SourceQQMusic:
		return qqmusic.NewClient(qqmusic.WithCookie(cfg.QQMusicCookie)), nil
	case music.SourceKugou:
		return kugou.NewClient(), nil
	case music.SourceLRCLib:
		return lrclib.NewClient(cfg.LRCLibURL), nil
	case music.SourceLocal:
		dirs := append([]string{cacheDir}, cfg.LocalDirs...)
		return local.NewIndex(dirs...), nil
	default:
		return nil, fmt.Errorf("unsupported provider source: %s", src)
	}
}

// NewRegistry 按配置顺序创建提供商，未知名称记录警告后跳过。
// 本地索引会在 ctx 结束前持续监听目录变化。
func NewRegistry(ctx context.Context, cfg config.SearchConfig, cacheDir string) (*music.Registry, error) {
	registry := music.NewRegistry()
	for _, name := range cfg.Providers {
		src, err := music.ParseSource(name)
		if err != nil {
			logger.Warn().Str("provider", name).Msg("Unknown provider in config, skipping")
			continue
		}
		p, err := CreateProvider(src, cfg, cacheDir)
		if err != nil {
			return nil, err
		}
		if idx, ok := p.(*local.Index); ok {
			if err := idx.Watch(ctx, local.DefaultDebounce); err != nil {
				logger.Warn().Err(err).Msg("Failed to index local lyrics")
			}
		}
		registry.Register(p)
	}

	if registry.Len() == 0 {
		return nil, music.ErrNoProviders
	}
	logger.Info().Interface("providers", registry.Sources()).Msg("Lyrics providers ready")
	return registry, nil
}
