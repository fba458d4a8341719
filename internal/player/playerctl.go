package player

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

var pctlLogger = log.With().Str("component", "playerctl").Logger()

const metadataFormat = "{{mpris:trackid}}\t{{xesam:title}}\t{{xesam:artist}}\t{{xesam:album}}\t{{mpris:length}}\t{{xesam:url}}\t{{mpris:artUrl}}"

// runFunc 执行 playerctl 并返回标准输出
type runFunc func(ctx context.Context, args ...string) ([]byte, error)

// Playerctl 通过 playerctl 命令行访问播放器
type Playerctl struct {
	bin    string
	player string // 为空时由 playerctl 自行选择
	run    runFunc
}

// NewPlayerctl 创建 playerctl 适配器，player 可为空
func NewPlayerctl(player string) *Playerctl {
	p := &Playerctl{bin: "playerctl", player: player}
	p.run = p.exec
	return p
}

func (p *Playerctl) args(args ...string) []string {
	if p.player == "" {
		return args
	}
	return append([]string{"--player=" + p.player}, args...)
}

func (p *Playerctl) exec(ctx context.Context, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.bin, p.args(args...)...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if strings.Contains(stderr.String(), "No players found") {
			return nil, ErrNotRunning
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%s not available: %w", p.bin, err)
		}
		return nil, fmt.Errorf("%s %s: %w: %s", p.bin, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// CurrentTrack 获取当前曲目
func (p *Playerctl) CurrentTrack(ctx context.Context) (*Track, error) {
	out, err := p.run(ctx, "metadata", "--format", metadataFormat)
	if errors.Is(err, ErrNotRunning) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parseMetadataLine(string(out)), nil
}

func parseMetadataLine(s string) *Track {
	s = strings.TrimRight(s, "\r\n")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := strings.Split(s, "\t")
	for len(fields) < 7 {
		fields = append(fields, "")
	}
	t := &Track{
		ID:      strings.TrimSpace(fields[0]),
		Title:   strings.TrimSpace(fields[1]),
		Artist:  strings.TrimSpace(fields[2]),
		Album:   strings.TrimSpace(fields[3]),
		URL:     strings.TrimSpace(fields[5]),
		Artwork: strings.TrimSpace(fields[6]),
	}
	if us, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64); err == nil && us > 0 {
		t.Duration = float64(us) / 1e6
	}
	if t.Title == "" && t.URL == "" {
		return nil
	}
	t.fillID()
	return t
}

// PlaybackState 获取播放状态
func (p *Playerctl) PlaybackState(ctx context.Context) (State, error) {
	out, err := p.run(ctx, "status")
	if errors.Is(err, ErrNotRunning) {
		return Stopped, nil
	}
	if err != nil {
		return Stopped, err
	}
	return ParseState(string(out)), nil
}

// Position 获取播放位置
func (p *Playerctl) Position(ctx context.Context) (float64, error) {
	out, err := p.run(ctx, "position")
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q: %w", strings.TrimSpace(string(out)), err)
	}
	return seconds, nil
}

// Seek 跳转到指定位置
func (p *Playerctl) Seek(ctx context.Context, position float64) error {
	_, err := p.run(ctx, "position", strconv.FormatFloat(position, 'f', 3, 64))
	return err
}

// Subscribe 启动 playerctl --follow 子进程，每输出一行投递一次通知
func (p *Playerctl) Subscribe(ctx context.Context) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, p.bin, p.args("--follow", "metadata", "--format", "{{status}}\t{{mpris:trackid}}\t{{xesam:title}}")...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open playerctl pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start playerctl --follow: %w", err)
	}

	var once sync.Once
	sub := newSignalSubscription(func() error {
		once.Do(cancel)
		return nil
	})

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			sub.notify()
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			pctlLogger.Warn().Err(err).Msg("playerctl --follow exited")
		}
		close(sub.events)
	}()

	pctlLogger.Info().Str("player", p.player).Msg("Following playerctl metadata")
	return sub, nil
}
