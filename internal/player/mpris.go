package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

var mprisLogger = log.With().Str("component", "mpris").Logger()

const (
	// DefaultMPRISService 默认的 MPRIS 服务名
	DefaultMPRISService = "org.mpris.MediaPlayer2.spotify"

	mprisPath          = "/org/mpris/MediaPlayer2"
	mprisPlayerIface   = "org.mpris.MediaPlayer2.Player"
	propertiesIface    = "org.freedesktop.DBus.Properties"
	errServiceUnknown  = "org.freedesktop.DBus.Error.ServiceUnknown"
	errNameHasNoOwner  = "org.freedesktop.DBus.Error.NameHasNoOwner"
	microsecondsPerSec = 1e6
)

// MPRIS 通过 D-Bus 会话总线访问 MPRIS 播放器
type MPRIS struct {
	conn    *dbus.Conn
	service string
}

// NewMPRIS 连接会话总线
func NewMPRIS(service string) (*MPRIS, error) {
	if service == "" {
		service = DefaultMPRISService
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &MPRIS{conn: conn, service: service}, nil
}

// Close 关闭总线连接
func (m *MPRIS) Close() error {
	return m.conn.Close()
}

func (m *MPRIS) getProperty(ctx context.Context, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := m.conn.Object(m.service, mprisPath).
		CallWithContext(ctx, propertiesIface+".Get", 0, mprisPlayerIface, name).
		Store(&v)
	if err != nil {
		if isNotRunning(err) {
			return v, ErrNotRunning
		}
		return v, fmt.Errorf("failed to get %s property: %w", name, err)
	}
	return v, nil
}

func isNotRunning(err error) bool {
	var name string
	var e dbus.Error
	var pe *dbus.Error
	switch {
	case errors.As(err, &e):
		name = e.Name
	case errors.As(err, &pe):
		name = pe.Name
	}
	return name == errServiceUnknown || name == errNameHasNoOwner
}

// CurrentTrack 读取 Metadata 属性
func (m *MPRIS) CurrentTrack(ctx context.Context) (*Track, error) {
	v, err := m.getProperty(ctx, "Metadata")
	if errors.Is(err, ErrNotRunning) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	metadata, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected metadata type %T", v.Value())
	}
	return trackFromMetadata(metadata), nil
}

func trackFromMetadata(metadata map[string]dbus.Variant) *Track {
	t := &Track{
		ID:       extractString(metadata, "mpris:trackid"),
		Title:    extractString(metadata, "xesam:title"),
		Artist:   extractArtist(metadata, "xesam:artist"),
		Album:    extractString(metadata, "xesam:album"),
		URL:      extractString(metadata, "xesam:url"),
		Artwork:  extractString(metadata, "mpris:artUrl"),
		Duration: extractMicros(metadata, "mpris:length"),
	}
	if t.Title == "" && t.URL == "" {
		return nil
	}
	t.fillID()
	return t
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	switch typed := variant.Value().(type) {
	case string:
		return typed
	case dbus.ObjectPath:
		return string(typed)
	default:
		return ""
	}
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	switch typed := variant.Value().(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	case string:
		return typed
	default:
		return ""
	}
}

func extractMicros(metadata map[string]dbus.Variant, key string) float64 {
	variant, exists := metadata[key]
	if !exists {
		return 0
	}
	switch typed := variant.Value().(type) {
	case int64:
		if typed > 0 {
			return float64(typed) / microsecondsPerSec
		}
	case uint64:
		return float64(typed) / microsecondsPerSec
	}
	return 0
}

// PlaybackState 读取 PlaybackStatus 属性
func (m *MPRIS) PlaybackState(ctx context.Context) (State, error) {
	v, err := m.getProperty(ctx, "PlaybackStatus")
	if errors.Is(err, ErrNotRunning) {
		return Stopped, nil
	}
	if err != nil {
		return Stopped, err
	}
	s, _ := v.Value().(string)
	return ParseState(s), nil
}

// Position 读取 Position 属性（微秒）
func (m *MPRIS) Position(ctx context.Context) (float64, error) {
	v, err := m.getProperty(ctx, "Position")
	if err != nil {
		return 0, err
	}
	us, ok := v.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", v.Value())
	}
	return float64(us) / microsecondsPerSec, nil
}

// Seek 调用 SetPosition 跳转
func (m *MPRIS) Seek(ctx context.Context, position float64) error {
	v, err := m.getProperty(ctx, "Metadata")
	if err != nil {
		return err
	}
	metadata, _ := v.Value().(map[string]dbus.Variant)
	trackID := extractString(metadata, "mpris:trackid")
	if trackID == "" {
		return fmt.Errorf("seek: %w: no track id", ErrUnsupported)
	}

	call := m.conn.Object(m.service, mprisPath).CallWithContext(ctx,
		mprisPlayerIface+".SetPosition", 0,
		dbus.ObjectPath(trackID), int64(position*microsecondsPerSec))
	if call.Err != nil {
		return fmt.Errorf("seek: %w", call.Err)
	}
	return nil
}

// Subscribe 监听 PropertiesChanged 和 Seeked 信号
func (m *MPRIS) Subscribe(ctx context.Context) (Subscription, error) {
	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(mprisPath),
			dbus.WithMatchInterface(propertiesIface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchSender(m.service),
		},
		{
			dbus.WithMatchObjectPath(mprisPath),
			dbus.WithMatchInterface(mprisPlayerIface),
			dbus.WithMatchMember("Seeked"),
			dbus.WithMatchSender(m.service),
		},
	}
	for i, opts := range matches {
		if err := m.conn.AddMatchSignalContext(ctx, opts...); err != nil {
			for _, added := range matches[:i] {
				_ = m.conn.RemoveMatchSignal(added...)
			}
			return nil, fmt.Errorf("failed to add signal match: %w", err)
		}
	}

	signals := make(chan *dbus.Signal, 16)
	m.conn.Signal(signals)
	stop := make(chan struct{})

	var once sync.Once
	sub := newSignalSubscription(func() error {
		var err error
		once.Do(func() {
			close(stop)
			m.conn.RemoveSignal(signals)
			for _, opts := range matches {
				if e := m.conn.RemoveMatchSignal(opts...); e != nil && err == nil {
					err = e
				}
			}
		})
		return err
	})

	go func() {
		defer close(sub.events)
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Path == mprisPath {
					sub.notify()
				}
			case <-stop:
				return
			}
		}
	}()

	mprisLogger.Info().Str("service", m.service).Msg("Subscribed to MPRIS signals")
	return sub, nil
}
