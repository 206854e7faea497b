package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opsinsight/opsinsight-go/internal/model"
	"go.uber.org/zap"
)

var (
	ErrUserOffline = errors.New("用户不在线")
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatTimeout  = 60 * time.Second
	maxMissedBeats    = 3
)

// SessionService WebSocket 会话管理
type SessionService struct {
	userSessions  map[int64]*model.UserSession // userId -> session
	sessionToUser map[string]int64             // sessionId -> userId
	mu            sync.RWMutex
	logger        *zap.Logger
}

// NewSessionService 创建会话管理服务
func NewSessionService(logger *zap.Logger) *SessionService {
	return &SessionService{
		userSessions:  make(map[int64]*model.UserSession),
		sessionToUser: make(map[string]int64),
		logger:        logger,
	}
}

// RegisterUser 注册用户会话，同一用户的旧连接会被关闭
func (s *SessionService) RegisterUser(userID int64, conn *websocket.Conn, sessionID string, clientIP string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.userSessions[userID]; ok {
		s.logger.Info("用户重新连接，关闭旧连接",
			zap.Int64("userId", userID),
			zap.String("oldSessionId", existing.SessionID))
		existing.Conn.Close()
		delete(s.sessionToUser, existing.SessionID)
	}

	s.userSessions[userID] = &model.UserSession{
		UserID:        userID,
		Conn:          conn,
		SessionID:     sessionID,
		ClientIP:      clientIP,
		LastHeartbeat: time.Now(),
	}
	s.sessionToUser[sessionID] = userID

	s.logger.Info("用户会话注册成功",
		zap.Int64("userId", userID),
		zap.String("sessionId", sessionID))
}

// SendMessageToUser 向指定用户发送消息
func (s *SessionService) SendMessageToUser(userID int64, message interface{}) error {
	s.mu.RLock()
	session, ok := s.userSessions[userID]
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("用户不在线，消息发送失败", zap.Int64("userId", userID))
		return ErrUserOffline
	}

	if err := session.WriteMessage(message); err != nil {
		s.logger.Error("消息发送失败",
			zap.Int64("userId", userID),
			zap.Error(err))
		s.RemoveUserBySessionID(session.SessionID)
		return err
	}
	return nil
}

// UpdateHeartbeat 更新心跳时间
func (s *SessionService) UpdateHeartbeat(userID int64) bool {
	s.mu.RLock()
	session, ok := s.userSessions[userID]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	session.UpdateHeartbeat()
	return true
}

// RemoveUserBySessionID 根据 sessionId 移除会话
func (s *SessionService) RemoveUserBySessionID(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID, ok := s.sessionToUser[sessionID]; ok {
		delete(s.userSessions, userID)
		delete(s.sessionToUser, sessionID)
		s.logger.Info("用户会话已移除",
			zap.Int64("userId", userID),
			zap.String("sessionId", sessionID))
	}
}

// GetOnlineCount 获取在线用户数
func (s *SessionService) GetOnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.userSessions)
}

// Run 心跳检测，ctx 结束时退出
func (s *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *SessionService) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, session := range s.userSessions {
		missed := session.CheckHeartbeat(now, heartbeatTimeout)
		switch {
		case missed >= maxMissedBeats:
			s.logger.Info("清理无效会话",
				zap.Int64("userId", userID),
				zap.Int("missedBeats", missed))
			session.Conn.Close()
			delete(s.userSessions, userID)
			delete(s.sessionToUser, session.SessionID)
		case missed > 0:
			s.logger.Warn("用户心跳丢失",
				zap.Int64("userId", userID),
				zap.Int("missedBeats", missed))
		}
	}
}
