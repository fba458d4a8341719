package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-backend/internal/config"
	"lyrics-backend/internal/ipc"
	ilyrics "lyrics-backend/internal/lyrics"
	"lyrics-backend/internal/player"
	"lyrics-backend/internal/statusbar"
	"lyrics-backend/pkg/lyrics"
	"lyrics-backend/pkg/music"
)

const (
	// 歌词刷新间隔
	tickInterval = 50 * time.Millisecond
	// 单次歌词查询的超时
	lookupTimeout = 30 * time.Second
)

// ConfigureLogging 设置 zerolog 的全局输出和级别
func ConfigureLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Broadcaster 显示当前歌词的输出端
type Broadcaster interface {
	Broadcast(text string)
}

// Notifier 歌词变化时通知外部进程
type Notifier interface {
	Notify() error
}

// LyricsService 查询歌词
type LyricsService interface {
	Lookup(ctx context.Context, req music.SearchRequest) (*lyrics.Document, error)
}

type lookupResult struct {
	track *player.Track
	doc   *lyrics.Document
	err   error
}

// session 把追踪器事件转换成歌词查询和显示刷新。
// 除 doc 外的字段只在 Run 的主循环里访问。
type session struct {
	out      Broadcaster
	notifier Notifier
	service  LyricsService
	leadTime float64 // 秒

	doc atomic.Pointer[lyrics.Document]

	track        *player.Track
	lastIndex    int
	cancelLookup context.CancelFunc
	results      chan lookupResult
}

func newSession(out Broadcaster, notifier Notifier, service LyricsService, leadTime time.Duration) *session {
	return &session{
		out:       out,
		notifier:  notifier,
		service:   service,
		leadTime:  leadTime.Seconds(),
		lastIndex: frameNone,
		results:   make(chan lookupResult, 1),
	}
}

// Document 当前发布的歌词，调用方不能修改
func (s *session) Document() *lyrics.Document {
	return s.doc.Load()
}

func (s *session) publish(doc *lyrics.Document) {
	s.doc.Store(doc)
	s.lastIndex = frameNone
}

func (s *session) show(text string) {
	s.out.Broadcast(text)
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(); err != nil {
		log.Debug().Err(err).Msg("Failed to notify status bar")
	}
}

// handleEvent 处理追踪器事件
func (s *session) handleEvent(ctx context.Context, ev player.Event, position float64) {
	switch ev.Kind {
	case player.TrackChanged:
		s.changeTrack(ctx, ev.Track)
	case player.StateChanged:
		if ev.State == player.Stopped {
			s.lastIndex = frameNone
			s.show(TextNoMusic)
			return
		}
		s.tick(position)
	case player.PositionMutated:
		s.lastIndex = frameNone
		s.tick(position)
	}
}

func (s *session) changeTrack(ctx context.Context, track *player.Track) {
	if s.cancelLookup != nil {
		s.cancelLookup()
		s.cancelLookup = nil
	}
	s.track = track
	s.publish(nil)

	if track == nil {
		s.show(TextNoMusic)
		return
	}

	log.Info().Msg("-----------------------------------------------------")
	log.Info().Str("song", track.String()).Msg("New song detected")
	s.show(fmt.Sprintf("... Searching for lyrics for %s ...", track))

	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	s.cancelLookup = cancel

	req := music.SearchRequest{
		Title:    track.Title,
		Artist:   track.Artist,
		Album:    track.Album,
		Duration: track.Duration,
	}
	go func() {
		defer cancel()
		doc, err := s.service.Lookup(lctx, req)
		select {
		case s.results <- lookupResult{track: track, doc: doc, err: err}:
		case <-lctx.Done():
		}
	}()
}

// handleResult 只接受当前曲目的查询结果
func (s *session) handleResult(res lookupResult, position float64) {
	if !s.track.Equal(res.track) {
		return
	}
	s.cancelLookup = nil

	switch {
	case res.err != nil:
		log.Error().Err(res.err).Msg("Failed to get lyrics")
		s.show(fmt.Sprintf("Error getting lyrics: %v", res.err))
	case res.doc == nil:
		s.show(fmt.Sprintf("No lyrics found for %s", res.track))
	default:
		log.Info().
			Int("lines_count", res.doc.Len()).
			Str("source", res.doc.Metadata.Source).
			Msg("Lyrics ready")
		s.publish(res.doc)
		s.tick(position)
	}
}

// tick 只有显示内容变化时才广播
func (s *session) tick(position float64) {
	f := resolveFrame(s.doc.Load(), position+s.leadTime)
	if f.index == s.lastIndex || f.index == frameNone {
		return
	}
	s.lastIndex = f.index

	log.Debug().
		Int("index", f.index).
		Float64("player_time", position).
		Str("lyric", f.text).
		Msg("Broadcasting lyric")
	s.show(f.text)
}

func (s *session) close() {
	if s.cancelLookup != nil {
		s.cancelLookup()
	}
}

// App 歌词后端
type App struct {
	cfg       *config.Config
	ipcServer *ipc.Server
	statusBar *statusbar.Controller
}

func New(cfg *config.Config) *App {
	return &App{
		cfg:       cfg,
		ipcServer: ipc.NewServer(cfg.App.SocketPath, cfg.App.OutputFile),
		statusBar: statusbar.NewController(cfg.StatusBar.Process, cfg.StatusBar.Signal),
	}
}

func (a *App) newAdapter() (player.Adapter, func(), error) {
	switch a.cfg.Player.Backend {
	case "playerctl":
		return player.NewPlayerctl(""), func() {}, nil
	default:
		m, err := player.NewMPRIS(a.cfg.Player.MPRISService)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { m.Close() }, nil
	}
}

// Run 运行直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	log.Info().Str("cache_dir", a.cfg.App.CacheDir).Msg("Lyrics cache directory")

	if err := a.ipcServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer a.ipcServer.Close()

	if err := a.statusBar.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to start status bar controller")
	}

	service, err := ilyrics.New(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to create lyrics service: %w", err)
	}
	defer service.Close()

	adapter, closeAdapter, err := a.newAdapter()
	if err != nil {
		return fmt.Errorf("failed to connect to player: %w", err)
	}
	defer closeAdapter()

	tracker, err := player.NewTracker(ctx, adapter,
		player.WithPollInterval(a.cfg.Player.PollInterval),
		player.WithPositionThreshold(a.cfg.Player.PositionThreshold.Seconds()))
	if err != nil {
		return err
	}
	defer tracker.Close()

	var notifier Notifier
	if a.statusBar.Enabled() {
		notifier = a.statusBar
	}
	s := newSession(a.ipcServer, notifier, service, a.cfg.App.LeadTime)
	defer s.close()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	log.Info().Str("backend", a.cfg.Player.Backend).Msg("Starting lyrics loop...")
	events := tracker.Events()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, ev, tracker.Position())
		case res := <-s.results:
			s.handleResult(res, tracker.Position())
		case <-ticker.C:
			if tracker.State() == player.Playing {
				s.tick(tracker.Position())
			}
		}
	}
}
