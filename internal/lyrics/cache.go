package lyrics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"lyrics-backend/pkg/fileutil"
	"lyrics-backend/pkg/redis"
)

// Cache 歌词文本缓存，未命中时返回 "", false, nil
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
	// Delete 删除条目，不存在时不报错
	Delete(ctx context.Context, key string) error
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "-")
}

// CacheKey 缓存键 "标题-歌手"
func CacheKey(title, artist string) string {
	return sanitizeFilename(title + "-" + artist)
}

// FileCache 以 <key>.lrc 保存在目录中
type FileCache struct {
	dir string
}

// NewFileCache 创建缓存目录
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".lrc")
}

func (c *FileCache) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (c *FileCache) Set(ctx context.Context, key, text string) error {
	return fileutil.WriteFileAtomic(c.path(key), []byte(text), 0644)
}

func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

const redisKeyPrefix = "lyrics:"

// RedisCache 多台机器共享的歌词缓存
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache ttl 为 0 时不过期
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	text, err := c.client.Get(ctx, redisKeyPrefix+key)
	if err != nil {
		return "", false, err
	}
	return text, text != "", nil
}

func (c *RedisCache) Set(ctx context.Context, key, text string) error {
	return c.client.SetWithExpiration(ctx, redisKeyPrefix+key, text, c.ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	_, err := c.client.Del(ctx, redisKeyPrefix+key)
	return err
}
