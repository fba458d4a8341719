package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRunning 没有正在运行的播放器
	ErrNotRunning = errors.New("no player running")
	// ErrUnsupported 播放器不支持该操作
	ErrUnsupported = errors.New("operation not supported by player")
)

// State 播放状态
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// ParseState 解析 MPRIS PlaybackStatus
func ParseState(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "playing":
		return Playing
	case "paused":
		return Paused
	default:
		return Stopped
	}
}

// Track 播放器当前加载的曲目，按 ID 判等
type Track struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration float64 // 秒
	URL      string
	Artwork  string
}

// Equal 按 ID 比较
func (t *Track) Equal(o *Track) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.ID == o.ID
}

func (t *Track) String() string {
	if t == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// fillID 播放器未提供 trackid 时用 url 或 "歌手 - 标题" 代替
func (t *Track) fillID() {
	if t.ID != "" {
		return
	}
	if t.URL != "" {
		t.ID = t.URL
		return
	}
	t.ID = t.Artist + " - " + t.Title
}

// Subscription 播放器变更通知，Close 后不再投递
type Subscription interface {
	Events() <-chan struct{}
	Close() error
}

// Adapter 媒体播放器接口
type Adapter interface {
	// CurrentTrack 当前曲目，没有曲目时返回 nil, nil
	CurrentTrack(ctx context.Context) (*Track, error)
	PlaybackState(ctx context.Context) (State, error)
	// Position 当前播放位置（秒）
	Position(ctx context.Context) (float64, error)
	// Subscribe 建立变更通知通道
	Subscribe(ctx context.Context) (Subscription, error)
}

// Seeker 支持跳转的播放器
type Seeker interface {
	Seek(ctx context.Context, position float64) error
}

// Seek 跳转到指定位置，播放器不支持时返回 ErrUnsupported
func Seek(ctx context.Context, a Adapter, position float64) error {
	s, ok := a.(Seeker)
	if !ok {
		return ErrUnsupported
	}
	return s.Seek(ctx, position)
}

// signalSubscription 把任意来源的通知合并进一个容量为 1 的 channel
type signalSubscription struct {
	events chan struct{}
	stop   func() error
}

func newSignalSubscription(stop func() error) *signalSubscription {
	return &signalSubscription{events: make(chan struct{}, 1), stop: stop}
}

func (s *signalSubscription) notify() {
	select {
	case s.events <- struct{}{}:
	default:
	}
}

func (s *signalSubscription) Events() <-chan struct{} { return s.events }

func (s *signalSubscription) Close() error { return s.stop() }
