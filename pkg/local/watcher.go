package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 文件变更后延迟多久重建索引
const DefaultDebounce = 500 * time.Millisecond

// Watch 扫描一次后在后台监听目录变更，变更经去抖后触发 Rescan，直到 ctx 结束
func (x *Index) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if err := x.Rescan(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watched := 0
	for _, dir := range x.dirs {
		if _, err := os.Stat(dir); err != nil {
			logger.Warn().Str("dir", dir).Err(err).Msg("Skipping lyrics directory")
			continue
		}
		if err := watcher.Add(dir); err != nil {
			logger.Warn().Str("dir", dir).Err(err).Msg("Failed to watch lyrics directory")
			continue
		}
		watched++
	}
	if watched == 0 {
		watcher.Close()
		return nil
	}

	logger.Info().Strs("dirs", x.dirs).Msg("Watching local lyrics")
	go x.watchLoop(ctx, watcher, debounce)
	return nil
}

func (x *Index) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration) {
	defer watcher.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Lyrics file changed")
			timer.Reset(debounce)

		case <-timer.C:
			if err := x.Rescan(); err != nil {
				logger.Error().Err(err).Msg("Failed to rescan local lyrics")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("File watcher error")

		case <-ctx.Done():
			return
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), Ext) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
