package realtime

import (
	"errors"
	"sync"

	"nexus/internal/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RegistryOptions 会话参数
type RegistryOptions struct {
	SendQueueSize int
	RateLimit     float64 // 每秒上行事件数，<=0 不限流
	RateBurst     int
}

// Registry 进程内所有存活会话
//
// 广播时先在读锁下复制会话列表，再逐个投递，投递期间允许并发移除
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     RegistryOptions
	log      logrus.FieldLogger
}

func NewRegistry(opts RegistryOptions, log logrus.FieldLogger) *Registry {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 256
	}
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts,
		log:      log.WithField("component", "registry"),
	}
}

// Admit 接入新连接，初始为未注册状态
func (r *Registry) Admit(transport Transport) *Session {
	var limiter *rate.Limiter
	if r.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.RateLimit), r.opts.RateBurst)
	}
	s := newSession(transport, r.opts.SendQueueSize, limiter)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	metrics.SessionOpened()
	r.log.WithField("session_id", s.id).Debug("会话接入")
	return s
}

// Register 绑定身份，重复注册以最后一次为准
// 会话已关闭或已移除时不做任何事
func (r *Registry) Register(s *Session, userID, username string) bool {
	entry := r.log.WithFields(logrus.Fields{
		"session_id": s.id,
		"user_id":    userID,
	})

	if !r.IsLive(s) || !s.bind(userID, username) {
		entry.Warn("会话已关闭，忽略注册")
		return false
	}

	entry.WithField("username", username).Info("会话已注册")
	return true
}

// IsLive 会话仍在注册表中且未关闭
func (r *Registry) IsLive(s *Session) bool {
	r.mu.RLock()
	_, ok := r.sessions[s.id]
	r.mu.RUnlock()
	return ok && !s.Closed()
}

// Broadcast 向所有存活会话投递，不区分是否已注册
// 单个会话失败不影响其他会话，返回成功入队的数量
func (r *Registry) Broadcast(frame []byte, exclude *Session) int {
	targets := r.Sessions()

	delivered := 0
	for _, s := range targets {
		if s == exclude {
			continue
		}
		err := s.Send(frame)
		switch {
		case err == nil:
			delivered++
			metrics.RecordDelivery(metrics.DeliveryDelivered)
		case errors.Is(err, ErrBackpressure):
			metrics.RecordDelivery(metrics.DeliveryBackpressure)
			r.log.WithField("session_id", s.id).Warn("发送队列已满，丢弃消息")
		default:
			metrics.RecordDelivery(metrics.DeliveryClosed)
		}
	}
	return delivered
}

// Remove 移除并关闭会话，可重复调用
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s.id]
	delete(r.sessions, s.id)
	r.mu.Unlock()

	s.Close()

	if ok {
		metrics.SessionClosed()
		r.log.WithField("session_id", s.id).Debug("会话断开")
	}
}

// Sessions 当前会话快照
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	return list
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll 关闭所有会话，用于停机
func (r *Registry) CloseAll() {
	for _, s := range r.Sessions() {
		r.Remove(s)
	}
}
