package model

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// UserSession 用户会话
type UserSession struct {
	UserID        int64
	Conn          *websocket.Conn
	SessionID     string
	ClientIP      string
	LastHeartbeat time.Time
	MissedBeats   int
	mu            sync.RWMutex // 保护会话字段
	writeMu       sync.Mutex   // WebSocket 同一时间只允许一个写者
}

// UpdateHeartbeat 更新心跳时间
func (s *UserSession) UpdateHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastHeartbeat = time.Now()
	s.MissedBeats = 0
}

// CheckHeartbeat 超时则累加丢失次数，返回当前丢失次数
func (s *UserSession) CheckHeartbeat(now time.Time, timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.LastHeartbeat) > timeout {
		s.MissedBeats++
	}
	return s.MissedBeats
}

// WriteMessage 向 WebSocket 写入消息（线程安全）
func (s *UserSession) WriteMessage(message interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.WriteJSON(message)
}
