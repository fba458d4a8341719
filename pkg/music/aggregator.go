package music

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"lyrics-backend/pkg/lyrics"
)

var logger = log.With().Str("component", "music-aggregator").Logger()

const (
	// DefaultTimeout 单个提供商的默认超时
	DefaultTimeout = 10 * time.Second
	// DefaultFetchLimit 每个提供商最多下载的候选数
	DefaultFetchLimit = 3
)

// Result 单个提供商的一批结果
type Result struct {
	Source    Source
	Rank      int // 提供商在聚合器中的顺序
	Tokens    []Token
	Documents []*lyrics.Document
}

// Aggregator 并发查询所有提供商，结果按到达顺序交付
type Aggregator struct {
	providers  []Provider
	timeout    time.Duration
	fetchLimit int
}

// Option 聚合器选项
type Option func(*Aggregator)

// WithTimeout 设置单个提供商的超时
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithFetchLimit 设置每个提供商最多下载的候选数
func WithFetchLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.fetchLimit = n
		}
	}
}

// NewAggregator 创建聚合器
func NewAggregator(providers []Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers:  providers,
		timeout:    DefaultTimeout,
		fetchLimit: DefaultFetchLimit,
	}
	for _, opt := range opts {
		opt(a)
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = string(p.Source())
	}
	logger.Info().
		Strs("providers", names).
		Dur("timeout", a.timeout).
		Msg("Lyrics aggregator initialized")
	return a
}

// Len 提供商数量
func (a *Aggregator) Len() int {
	return len(a.providers)
}

// Search 并发搜索所有提供商。失败或超时的提供商被记录后丢弃，
// 所有分支结束（或 ctx 取消）后关闭返回的 channel。
func (a *Aggregator) Search(ctx context.Context, req SearchRequest) <-chan Result {
	return a.fanOut(ctx, req, func(ctx context.Context, p Provider) (Result, bool) {
		tokens, err := p.Search(ctx, req)
		if err != nil {
			logBranchError(p, req, err, "Provider search failed")
			return Result{}, false
		}
		if len(tokens) == 0 {
			logger.Debug().Str("provider", string(p.Source())).Msg("Provider returned no candidates")
			return Result{}, false
		}
		return Result{Tokens: tokens}, true
	})
}

// SearchLyrics 并发搜索并下载歌词，每个提供商按自身排序下载前 fetchLimit 个候选
func (a *Aggregator) SearchLyrics(ctx context.Context, req SearchRequest) <-chan Result {
	return a.fanOut(ctx, req, func(ctx context.Context, p Provider) (Result, bool) {
		tokens, err := p.Search(ctx, req)
		if err != nil {
			logBranchError(p, req, err, "Provider search failed")
			return Result{}, false
		}
		if len(tokens) > a.fetchLimit {
			tokens = tokens[:a.fetchLimit]
		}

		res := Result{Tokens: tokens}
		for _, token := range tokens {
			doc, err := p.Fetch(ctx, token)
			if err != nil {
				if ctx.Err() != nil {
					logBranchError(p, req, ctx.Err(), "Provider fetch aborted")
					break
				}
				logger.Warn().
					Str("provider", string(p.Source())).
					Str("token", token.ID).
					Err(err).
					Msg("Provider fetch failed")
				continue
			}
			if doc == nil || doc.Len() == 0 {
				continue
			}
			res.Documents = append(res.Documents, Stamp(doc, token))
		}
		return res, len(res.Documents) > 0
	})
}

// Best 返回与请求最匹配的歌词，没有结果时返回 nil, nil
func (a *Aggregator) Best(ctx context.Context, req SearchRequest) (*lyrics.Document, error) {
	if len(a.providers) == 0 {
		return nil, ErrNoProviders
	}

	var (
		best      *lyrics.Document
		bestScore float64
		bestRank  int
	)
	for res := range a.SearchLyrics(ctx, req) {
		for _, doc := range res.Documents {
			score := Quality(doc, req)
			if best == nil || score > bestScore || (score == bestScore && res.Rank < bestRank) {
				best, bestScore, bestRank = doc, score, res.Rank
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if best != nil {
		logger.Info().
			Str("request", req.String()).
			Str("provider", best.Metadata.Source).
			Float64("quality", bestScore).
			Msg("Selected lyrics")
	}
	return best, nil
}

type branchFunc func(ctx context.Context, p Provider) (Result, bool)

func (a *Aggregator) fanOut(ctx context.Context, req SearchRequest, fn branchFunc) <-chan Result {
	out := make(chan Result)

	var g errgroup.Group
	for rank, p := range a.providers {
		rank, p := rank, p
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			res, ok := runBranch(bctx, p, fn)
			if !ok {
				return nil
			}
			res.Source = p.Source()
			res.Rank = rank

			select {
			case out <- res:
			case <-ctx.Done():
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(out)
		logger.Debug().Str("request", req.String()).Msg("Aggregation finished")
	}()
	return out
}

// runBranch 在 ctx 结束时立即返回，即使提供商没有响应 ctx
func runBranch(ctx context.Context, p Provider, fn branchFunc) (Result, bool) {
	type branchResult struct {
		res Result
		ok  bool
	}
	done := make(chan branchResult, 1)
	go func() {
		res, ok := fn(ctx, p)
		done <- branchResult{res, ok}
	}()

	select {
	case r := <-done:
		return r.res, r.ok
	case <-ctx.Done():
		logger.Warn().
			Str("provider", string(p.Source())).
			Err(ctx.Err()).
			Msg("Provider did not respond in time")
		return Result{}, false
	}
}

func logBranchError(p Provider, req SearchRequest, err error, msg string) {
	logger.Warn().
		Str("provider", string(p.Source())).
		Str("request", req.String()).
		Err(err).
		Msg(msg)
}
