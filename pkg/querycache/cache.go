package querycache

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	kvSep    = " => "
	kvFormat = "%s" + kvSep + "%s\n"
)

// Cache 键值缓存，内存中用 sync.Map，落盘为每行一条 "key => value" 的追加日志
type Cache struct {
	path string
	m    sync.Map
	mu   sync.Mutex // 串行化文件追加
}

// Open 加载缓存文件，文件不存在时创建
func Open(path string) (*Cache, error) {
	c := &Cache{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), kvSep)
		if !ok {
			continue
		}
		c.m.Store(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return c, nil
}

// Get 读取缓存，键按写入时的方式处理换行
func (c *Cache) Get(key string) (string, bool) {
	v, ok := c.m.Load(sanitize(key))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Add 写入缓存，已存在的键保持不变
func (c *Cache) Add(key, value string) error {
	key, value = sanitize(key), sanitize(value)
	if _, loaded := c.m.LoadOrStore(key, value); loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, kvFormat, key, value); err != nil {
		return fmt.Errorf("failed to append cache entry: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
