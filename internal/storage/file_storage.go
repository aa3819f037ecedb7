// internal/storage/file_storage.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/Corphon/Ravlo/internal/utils"
)

// BlobStore 是按键读写的不透明存储，每个键保存一个完整的值
type BlobStore interface {
	// Get 读取键对应的值；键不存在时返回 ok=false 且 err=nil
	Get(key string) (data []byte, ok bool, err error)
	Put(key string, data []byte) error
	// Delete 删除键；键不存在不是错误
	Delete(key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateKey 检查键名，键直接映射为文件名
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("无效的存储键: %q", key)
	}
	return nil
}

// FileStorage 把每个键保存为 BaseDir 下的一个 .json 文件
type FileStorage struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // 文件级别锁 path -> *sync.RWMutex

	// 简单缓存
	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int

	logger *utils.Logger
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string, logger *utils.Logger) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	if logger == nil {
		logger = utils.GetLogger()
	}

	return &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 100,
		logger:       logger,
	}, nil
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (fs *FileStorage) pathFor(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(fs.BaseDir, key+".json"), nil
}

// Put 原子写入键对应的值
func (fs *FileStorage) Put(key string, data []byte) error {
	fullPath, err := fs.pathFor(key)
	if err != nil {
		return err
	}

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	// 原子性文件写入
	tempPath := fullPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			fs.logger.Warn("failed to clean up temporary file after rename failure", map[string]interface{}{
				"path":  tempPath,
				"error": removeErr.Error(),
			})
		}
		return fmt.Errorf("保存文件失败: %w", err)
	}

	fs.updateCache(fullPath, data)
	return nil
}

// Get 读取键对应的值
func (fs *FileStorage) Get(key string) ([]byte, bool, error) {
	fullPath, err := fs.pathFor(key)
	if err != nil {
		return nil, false, err
	}

	// 检查缓存
	if data, ok := fs.cached(fullPath); ok {
		return data, true, nil
	}

	// 获取文件锁（读锁）
	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取文件失败: %w", err)
	}

	fs.updateCache(fullPath, content)
	return content, true, nil
}

// Delete 删除键
func (fs *FileStorage) Delete(key string) error {
	fullPath, err := fs.pathFor(key)
	if err != nil {
		return err
	}

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// Keys 列出已保存的键，按名称排序
func (fs *FileStorage) Keys() ([]string, error) {
	entries, err := os.ReadDir(fs.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		keys = append(keys, name[:len(name)-len(".json")])
	}
	sort.Strings(keys)
	return keys, nil
}

func (fs *FileStorage) cached(path string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()

	entry, exists := fs.cache[path]
	if !exists || time.Since(entry.Timestamp) >= fs.cacheExpiry {
		return nil, false
	}
	out := make([]byte, len(entry.Data))
	copy(out, entry.Data)
	return out, true
}

// 缓存管理
func (fs *FileStorage) updateCache(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	fs.cache[path] = &CacheEntry{
		Data:      stored,
		Timestamp: time.Now(),
	}

	// 简单的缓存大小控制
	if len(fs.cache) > fs.maxCacheSize {
		var oldestKey string
		var oldestTime time.Time

		for key, entry := range fs.cache {
			if oldestKey == "" || entry.Timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.Timestamp
			}
		}

		if oldestKey != "" {
			delete(fs.cache, oldestKey)
		}
	}
}

// StartCacheCleanup 定期清理过期缓存，ctx 结束时停止
func (fs *FileStorage) StartCacheCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := fs.cleanupExpiredCache(); removed > 0 {
					fs.logger.Debug("expired cache entries removed", map[string]interface{}{"count": removed})
				}
			}
		}
	}()
}

// 清理过期缓存
func (fs *FileStorage) cleanupExpiredCache() int {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	removed := 0
	now := time.Now()
	for path, entry := range fs.cache {
		if now.Sub(entry.Timestamp) > fs.cacheExpiry {
			delete(fs.cache, path)
			removed++
		}
	}
	return removed
}

// invalidateCache 清除指定路径的缓存
func (fs *FileStorage) invalidateCache(path string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	delete(fs.cache, path)
}
