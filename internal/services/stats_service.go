// internal/services/stats_service.go
package services

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/utils"
)

// UsageKey 生成用量统计在存储中的键
const UsageKey = "ravlo-usage"

// UsageStats 表示生成接口使用统计
type UsageStats struct {
	TodayRequests int            `json:"today_requests"`
	MonthlyTokens int            `json:"monthly_tokens"`
	DailyStats    map[string]int `json:"daily_stats"`
	MonthlyStats  map[string]int `json:"monthly_stats"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// StatsService 提供生成接口使用统计功能
type StatsService struct {
	store  storage.BlobStore
	now    func() time.Time
	logger *utils.Logger

	mutex       sync.Mutex
	cachedStats *UsageStats
}

// NewStatsService 创建统计服务实例；now 为空时使用 time.Now
func NewStatsService(store storage.BlobStore, now func() time.Time, logger *utils.Logger) *StatsService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &StatsService{store: store, now: now, logger: logger}
}

func newUsageStats(now time.Time) *UsageStats {
	return &UsageStats{
		DailyStats:   make(map[string]int),
		MonthlyStats: make(map[string]int),
		LastUpdated:  now,
	}
}

// loadUnlocked 加载统计数据，数据损坏时从零开始
func (s *StatsService) loadUnlocked() {
	if s.cachedStats != nil {
		return
	}

	s.cachedStats = newUsageStats(s.now())

	data, ok, err := s.store.Get(UsageKey)
	if err != nil || !ok {
		return
	}

	var stats UsageStats
	if err := json.Unmarshal(data, &stats); err != nil {
		s.logger.Warn("usage stats corrupt, starting fresh", map[string]interface{}{"error": err.Error()})
		return
	}
	if stats.DailyStats == nil {
		stats.DailyStats = make(map[string]int)
	}
	if stats.MonthlyStats == nil {
		stats.MonthlyStats = make(map[string]int)
	}
	s.cachedStats = &stats
}

// rollPeriodUnlocked 跨天或跨月时重置计数
func (s *StatsService) rollPeriodUnlocked(now time.Time) {
	stats := s.cachedStats
	if now.Format("2006-01-02") != stats.LastUpdated.Format("2006-01-02") {
		stats.TodayRequests = 0
	}
	if now.Format("2006-01") != stats.LastUpdated.Format("2006-01") {
		stats.MonthlyTokens = 0
	}
}

// GetUsageStats 获取使用统计的副本
func (s *StatsService) GetUsageStats() *UsageStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.loadUnlocked()
	now := s.now()
	s.rollPeriodUnlocked(now)

	return &UsageStats{
		TodayRequests: s.cachedStats.TodayRequests,
		MonthlyTokens: s.cachedStats.MonthlyTokens,
		DailyStats:    maps.Clone(s.cachedStats.DailyStats),
		MonthlyStats:  maps.Clone(s.cachedStats.MonthlyStats),
		LastUpdated:   s.cachedStats.LastUpdated,
	}
}

// RecordAPIRequest 记录一次成功的生成请求
func (s *StatsService) RecordAPIRequest(tokens int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.loadUnlocked()
	now := s.now()
	s.rollPeriodUnlocked(now)

	today := now.Format("2006-01-02")
	month := now.Format("2006-01")

	s.cachedStats.TodayRequests++
	s.cachedStats.MonthlyTokens += tokens
	s.cachedStats.DailyStats[today]++
	s.cachedStats.MonthlyStats[month] += tokens
	s.cachedStats.LastUpdated = now

	data, err := json.Marshal(s.cachedStats)
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}
	return s.store.Put(UsageKey, data)
}

// ResetStats 重置统计数据
func (s *StatsService) ResetStats() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cachedStats = newUsageStats(s.now())
	return s.store.Delete(UsageKey)
}
