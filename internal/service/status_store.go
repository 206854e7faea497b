package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opsinsight/opsinsight-go/internal/model"
	"github.com/redis/go-redis/v9"
)

// ErrStatusNotFound 派发记录不存在或已过期
var ErrStatusNotFound = errors.New("dispatch status not found")

// StatusStore 派发状态存储
type StatusStore interface {
	Save(ctx context.Context, status model.DispatchStatus) error
	Get(ctx context.Context, id string) (*model.DispatchStatus, error)
}

// MemoryStatusStore 内存状态存储，过期记录在写入时清理
type MemoryStatusStore struct {
	ttl     time.Duration
	records map[string]model.DispatchStatus
	mu      sync.RWMutex
	now     func() time.Time
}

// NewMemoryStatusStore 创建内存状态存储
func NewMemoryStatusStore(ttl time.Duration) *MemoryStatusStore {
	return &MemoryStatusStore{
		ttl:     ttl,
		records: make(map[string]model.DispatchStatus),
		now:     time.Now,
	}
}

// Save 保存状态
func (s *MemoryStatusStore) Save(_ context.Context, status model.DispatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, r := range s.records {
		if s.expired(r, now) {
			delete(s.records, id)
		}
	}
	s.records[status.ID] = status
	return nil
}

// Get 查询状态
func (s *MemoryStatusStore) Get(_ context.Context, id string) (*model.DispatchStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok || s.expired(r, s.now()) {
		return nil, ErrStatusNotFound
	}
	return &r, nil
}

func (s *MemoryStatusStore) expired(r model.DispatchStatus, now time.Time) bool {
	return s.ttl > 0 && now.Sub(r.UpdatedAt) > s.ttl
}

// RedisStatusStore Redis 状态存储
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusStore 创建 Redis 状态存储
func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	return &RedisStatusStore{client: client, ttl: ttl}
}

func statusKey(id string) string {
	return "dispatch_status:" + id
}

// Save 保存状态
func (s *RedisStatusStore) Save(ctx context.Context, status model.DispatchStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("序列化派发状态失败: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(status.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("写入派发状态失败: %w", err)
	}
	return nil
}

// Get 查询状态
func (s *RedisStatusStore) Get(ctx context.Context, id string) (*model.DispatchStatus, error) {
	data, err := s.client.Get(ctx, statusKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取派发状态失败: %w", err)
	}

	var status model.DispatchStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("解析派发状态失败: %w", err)
	}
	return &status, nil
}
