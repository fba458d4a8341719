package statusbar

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "statusbar").Logger()

// RefreshInterval 重新查找状态栏进程的间隔
const RefreshInterval = 10 * time.Second

// ErrNotFound 状态栏进程不存在
var ErrNotFound = errors.New("status bar process not found")

type (
	findFunc   func(ctx context.Context, process string) (int, error)
	signalFunc func(pid int, sig syscall.Signal) error
)

// Controller 在歌词变化时给状态栏进程（如 i3blocks）发送实时信号
type Controller struct {
	process string
	signal  syscall.Signal

	find findFunc
	kill signalFunc

	pid      int
	pidMutex sync.RWMutex

	runMutex  sync.Mutex
	isRunning bool
}

// NewController process 为空时 Notify 不做任何事
func NewController(process string, signal int) *Controller {
	return &Controller{
		process: process,
		signal:  syscall.Signal(signal),
		find:    findPID,
		kill:    syscall.Kill,
		pid:     -1,
	}
}

// Enabled 是否配置了状态栏进程
func (c *Controller) Enabled() bool {
	return c.process != ""
}

// Start 立即查找一次进程，之后每 RefreshInterval 刷新，直到 ctx 结束
func (c *Controller) Start(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	if c.isRunning {
		return fmt.Errorf("controller is already running")
	}
	c.isRunning = true

	if err := c.refreshPID(ctx); err != nil {
		logger.Debug().Err(err).Str("process", c.process).Msg("Status bar not found yet")
	}

	go c.monitorLoop(ctx)
	logger.Info().Str("process", c.process).Int("signal", int(c.signal)).Msg("Status bar controller started")
	return nil
}

func (c *Controller) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.refreshPID(ctx); err != nil && ctx.Err() == nil {
				logger.Debug().Err(err).Msg("Failed to refresh status bar PID")
			}
		case <-ctx.Done():
			c.runMutex.Lock()
			c.isRunning = false
			c.runMutex.Unlock()
			logger.Info().Msg("Status bar controller stopped")
			return
		}
	}
}

func (c *Controller) refreshPID(ctx context.Context) error {
	pid, err := c.find(ctx, c.process)
	if err != nil {
		pid = -1
	}

	c.pidMutex.Lock()
	oldPID := c.pid
	c.pid = pid
	c.pidMutex.Unlock()

	if oldPID != pid {
		logger.Info().Int("old_pid", oldPID).Int("pid", pid).Msg("Status bar PID updated")
	}
	return err
}

// PID 当前记录的进程号，未找到时为 -1
func (c *Controller) PID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Notify 发送刷新信号
func (c *Controller) Notify() error {
	if !c.Enabled() {
		return nil
	}
	pid := c.PID()
	if pid <= 0 {
		return ErrNotFound
	}

	if err := c.kill(pid, c.signal); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			c.pidMutex.Lock()
			c.pid = -1
			c.pidMutex.Unlock()
			return ErrNotFound
		}
		return fmt.Errorf("failed to send signal %d to process %d: %w", c.signal, pid, err)
	}
	return nil
}

// findPID 优先用 pgrep，失败时解析 ps aux
func findPID(ctx context.Context, process string) (int, error) {
	output, err := exec.CommandContext(ctx, "pgrep", "-x", process).Output()
	if err == nil {
		if pid, ok := firstPID(string(output)); ok {
			return pid, nil
		}
	}
	return findPIDFromPS(ctx, process)
}

func firstPID(output string) (int, bool) {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if pid, err := strconv.Atoi(strings.TrimSpace(line)); err == nil && pid > 0 {
			return pid, true
		}
	}
	return 0, false
}

func findPIDFromPS(ctx context.Context, process string) (int, error) {
	output, err := exec.CommandContext(ctx, "ps", "aux").Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ps command: %w", err)
	}
	if pid, ok := parsePS(string(output), process); ok {
		return pid, nil
	}
	return 0, ErrNotFound
}

// parsePS 在 ps aux 输出中找命令名等于 process 的第一行
func parsePS(output, process string) (int, bool) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 11 {
			continue
		}
		cmd := fields[10]
		if i := strings.LastIndexByte(cmd, '/'); i >= 0 {
			cmd = cmd[i+1:]
		}
		if cmd != process {
			continue
		}
		if pid, err := strconv.Atoi(fields[1]); err == nil {
			return pid, true
		}
	}
	return 0, false
}
