package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var trackerLogger = log.With().Str("component", "tracker").Logger()

const (
	DefaultPollInterval      = time.Second
	DefaultPositionThreshold = 1.5 // 秒
)

// EventKind 追踪器事件类型
type EventKind int

const (
	TrackChanged EventKind = iota
	StateChanged
	PositionMutated
)

func (k EventKind) String() string {
	switch k {
	case TrackChanged:
		return "track_changed"
	case StateChanged:
		return "state_changed"
	default:
		return "position_mutated"
	}
}

// Event 追踪器发出的事件，携带事件发生时的快照
type Event struct {
	Kind     EventKind
	Track    *Track
	State    State
	Position float64
}

// TrackerOption 追踪器选项
type TrackerOption func(*Tracker)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithPollInterval 没有通知时的轮询间隔
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithPositionThreshold 位置偏差超过该值（秒）时重新锚定
func WithPositionThreshold(seconds float64) TrackerOption {
	return func(t *Tracker) {
		if seconds > 0 {
			t.threshold = seconds
		}
	}
}

// Tracker 根据播放器的离散通知推算连续的播放位置。
//
// 播放中位置 = now - anchor，暂停/停止时位置固定为 frozen。
// 所有输入（通知、轮询）都经过 reconcile 处理。
type Tracker struct {
	adapter      Adapter
	sub          Subscription
	now          func() time.Time
	pollInterval time.Duration
	threshold    float64

	mu         sync.Mutex
	track      *Track
	state      State
	anchor     time.Time
	frozen     float64
	lastNotify time.Time

	events    chan Event
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewTracker 订阅播放器通知并开始追踪。无法建立通知通道时返回错误
func NewTracker(ctx context.Context, adapter Adapter, opts ...TrackerOption) (*Tracker, error) {
	t := &Tracker{
		adapter:      adapter,
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		threshold:    DefaultPositionThreshold,
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	sub, err := adapter.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to player: %w", err)
	}
	t.sub = sub

	ctx, t.cancel = context.WithCancel(ctx)
	t.anchor = t.now()
	t.reconcile(ctx)

	go t.loop(ctx)
	return t, nil
}

// Events 事件流，Close 后关闭
func (t *Tracker) Events() <-chan Event {
	return t.events
}

// Position 推算的当前位置（秒），不访问播放器
func (t *Tracker) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.estimateLocked(t.now())
}

// State 当前播放状态
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Track 当前曲目
func (t *Tracker) Track() *Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.track
}

// Close 停止追踪并释放订阅
func (t *Tracker) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.done
		err = t.sub.Close()
		close(t.events)
	})
	return err
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	notifications := t.sub.Events()
	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-notifications:
			if !ok {
				trackerLogger.Warn().Msg("Player notification channel closed, falling back to polling")
				notifications = nil
				continue
			}
			t.mu.Lock()
			t.lastNotify = t.now()
			t.mu.Unlock()
			t.reconcile(ctx)

		case <-ticker.C:
			t.mu.Lock()
			quiet := t.now().Sub(t.lastNotify) >= t.pollInterval
			t.mu.Unlock()
			if quiet {
				t.reconcile(ctx)
			}
		}
	}
}

// reconcile 读取播放器状态并与推算值比对，是唯一修改追踪状态的入口
func (t *Tracker) reconcile(ctx context.Context) {
	track, err := t.adapter.CurrentTrack(ctx)
	if err != nil {
		if ctx.Err() == nil {
			trackerLogger.Warn().Err(err).Msg("Failed to read current track")
		}
		return
	}

	state, err := t.adapter.PlaybackState(ctx)
	if err != nil {
		if ctx.Err() == nil {
			trackerLogger.Warn().Err(err).Msg("Failed to read playback state")
		}
		return
	}
	if track == nil {
		state = Stopped
	}

	position, posErr := t.adapter.Position(ctx)
	posOK := posErr == nil && position >= 0 && !math.IsNaN(position) && !math.IsInf(position, 0)
	if !posOK && track != nil && !errors.Is(posErr, ErrNotRunning) && ctx.Err() == nil {
		trackerLogger.Warn().
			Err(posErr).
			Float64("reported", position).
			Msg("Player position desync, keeping last good value")
	}

	now := t.now()
	var events []Event

	t.mu.Lock()
	estimate := t.estimateLocked(now)
	if !posOK {
		position = estimate
	}

	switch {
	case !t.track.Equal(track):
		t.track = track
		t.state = state
		// 新曲目读不到进度时从头开始
		if track == nil || !posOK {
			position = 0
		}
		t.anchorLocked(now, position)
		events = append(events, t.eventLocked(TrackChanged, position))

	case state != t.state:
		t.state = state
		t.anchorLocked(now, position)
		events = append(events, t.eventLocked(StateChanged, position))

	case posOK && state != Stopped && math.Abs(position-estimate) > t.threshold:
		t.anchorLocked(now, position)
		events = append(events, t.eventLocked(PositionMutated, position))
	}
	t.mu.Unlock()

	for _, ev := range events {
		trackerLogger.Debug().
			Str("event", ev.Kind.String()).
			Str("track", ev.Track.String()).
			Str("state", ev.State.String()).
			Float64("position", ev.Position).
			Msg("Player event")
		select {
		case t.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) estimateLocked(now time.Time) float64 {
	if t.state == Playing {
		return math.Max(0, now.Sub(t.anchor).Seconds())
	}
	return t.frozen
}

func (t *Tracker) anchorLocked(now time.Time, position float64) {
	t.frozen = position
	t.anchor = now.Add(-time.Duration(position * float64(time.Second)))
}

func (t *Tracker) eventLocked(kind EventKind, position float64) Event {
	var track *Track
	if t.track != nil {
		cp := *t.track
		track = &cp
	}
	return Event{Kind: kind, Track: track, State: t.state, Position: position}
}
