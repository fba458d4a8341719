package lyrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"lyrics-backend/internal/config"
	"lyrics-backend/pkg/ai"
	"lyrics-backend/pkg/ai/gemini"
	"lyrics-backend/pkg/ai/openai"
	lrc "lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
	"lyrics-backend/pkg/querycache"
	"lyrics-backend/pkg/redis"
	"lyrics-backend/pkg/tencent"
)

var logger = log.With().Str("component", "lyrics").Logger()

// SourceCache 从缓存读出的歌词的来源标记
const SourceCache = "cache"

// Searcher 多来源歌词搜索
type Searcher interface {
	Best(ctx context.Context, req music.SearchRequest) (*lrc.Document, error)
}

// Translator 为缺少翻译的歌词补充机器翻译
type Translator interface {
	TranslateDocument(ctx context.Context, doc *lrc.Document) (int, error)
}

// Service 歌词查询：整理请求 → 缓存 → 多来源搜索 → 翻译 → 写缓存
type Service struct {
	normalizer    Normalizer
	cache         Cache
	searcher      Searcher
	translator    Translator // 可以为 nil
	filterCredits bool

	closers []io.Closer
}

// Option 服务选项
type Option func(*Service)

// WithNormalizer 替换请求整理器
func WithNormalizer(n Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

// WithCache 替换缓存
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithTranslator 启用机器翻译
func WithTranslator(t Translator) Option {
	return func(s *Service) { s.translator = t }
}

// WithFilterCredits 禁用作词作曲等制作人员行
func WithFilterCredits(on bool) Option {
	return func(s *Service) { s.filterCredits = on }
}

// NewService 组装服务，未指定的组件使用不做任何事的实现
func NewService(searcher Searcher, opts ...Option) *Service {
	s := &Service{
		normalizer: PassThrough{},
		cache:      nopCache{},
		searcher:   searcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New 根据配置创建完整的歌词服务
func New(ctx context.Context, cfg *config.Config) (s *Service, err error) {
	registry, err := NewRegistry(ctx, cfg.Search, cfg.App.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create providers: %w", err)
	}
	aggregator := music.NewAggregator(registry.Providers(), music.WithTimeout(cfg.Search.Timeout))

	opts := []Option{WithFilterCredits(cfg.App.FilterCredits)}
	var closers []io.Closer
	defer func() {
		if err != nil {
			closeAll(closers)
		}
	}()

	if cfg.AI.Enabled() {
		client, closer, err := newAIClient(ctx, cfg.AI)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		memo, err := querycache.Open(filepath.Join(cfg.App.CacheDir, "music_cache.list"))
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to open query cache, AI results will not be memoized")
			memo = nil
		}
		opts = append(opts, WithNormalizer(NewAINormalizer(client, memo)))
	}

	cache, closer, err := newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	opts = append(opts, WithCache(cache))

	if cfg.Tencent.Enabled() {
		translator, err := tencent.NewTranslator(cfg.Tencent.SecretID, cfg.Tencent.SecretKey, cfg.Tencent.Region, cfg.Tencent.TargetLang)
		if err != nil {
			return nil, fmt.Errorf("failed to create translator: %w", err)
		}
		opts = append(opts, WithTranslator(translator))
	}

	s = NewService(aggregator, opts...)
	s.closers = closers
	return s, nil
}

func newAIClient(ctx context.Context, cfg config.AIConfig) (ai.AiInterface, io.Closer, error) {
	if cfg.ModuleName == "gemini" {
		client, err := gemini.NewGemini(ctx, cfg.APIKey, cfg.ModuleName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, client, nil
	}
	return openai.NewOpenAi(cfg.APIKey, cfg.ModuleName, cfg.BaseURL), nil, nil
}

// newCache Redis 不可用时回退到文件缓存
func newCache(ctx context.Context, cfg *config.Config) (Cache, io.Closer, error) {
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err == nil {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis lyrics cache")
			return NewRedisCache(client, cfg.Redis.TTL), client, nil
		}
		logger.Warn().Err(err).Msg("Failed to connect to redis, using file cache")
	}
	cache, err := NewFileCache(cfg.App.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	return cache, nil, nil
}

// Lookup 查询歌词。不是歌曲或没有找到歌词时返回 nil, nil
func (s *Service) Lookup(ctx context.Context, req music.SearchRequest) (*lrc.Document, error) {
	normalized, ok, err := s.normalizer.Normalize(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Err(err).Str("request", req.String()).Msg("Failed to normalize request, using it as is")
		normalized, ok = req, req.Title != ""
	}
	if !ok {
		return nil, nil
	}
	req = normalized

	key := CacheKey(req.Title, req.Artist)
	if doc := s.fromCache(ctx, key); doc != nil {
		logger.Info().Str("key", key).Msg("Cache HIT")
		return s.finish(doc), nil
	}
	logger.Info().Str("request", req.String()).Msg("Cache MISS, searching providers")

	doc, err := s.searcher.Best(ctx, req)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		logger.Info().Str("request", req.String()).Msg("No lyrics found")
		return nil, nil
	}

	// 先禁用制作人员行，翻译只处理启用的行
	doc = s.finish(doc)
	if s.translator != nil && !doc.HasTranslation() {
		_, err := s.translator.TranslateDocument(ctx, doc)
		if err != nil && !errors.Is(err, tencent.ErrSameLanguage) {
			logger.Warn().Err(err).Msg("Failed to translate lyrics")
		}
	}

	if err := s.cache.Set(ctx, key, doc.String()); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("Failed to write lyrics cache")
	}
	return doc, nil
}

func (s *Service) fromCache(ctx context.Context, key string) *lrc.Document {
	text, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Failed to read lyrics cache")
		return nil
	}
	if !ok {
		return nil
	}
	doc, err := lrc.Parse(text)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Dropping unreadable cache entry")
		if err := s.cache.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to delete cache entry")
		}
		return nil
	}
	doc.Metadata.Source = SourceCache
	return doc
}

func (s *Service) finish(doc *lrc.Document) *lrc.Document {
	if s.filterCredits {
		if n := doc.DisableCredits(); n > 0 {
			logger.Debug().Int("lines", n).Msg("Disabled credit lines")
		}
	}
	return doc
}

// Close 释放 Redis、AI 等连接
func (s *Service) Close() error {
	return closeAll(s.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (nopCache) Set(context.Context, string, string) error         { return nil }
func (nopCache) Delete(context.Context, string) error              { return nil }
