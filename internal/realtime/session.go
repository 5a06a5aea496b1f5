package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var (
	ErrTransportClosed = errors.New("连接已关闭")
	ErrBackpressure    = errors.New("发送队列已满")
)

// Transport 会话底层连接，*websocket.Conn 满足该接口
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type State int

const (
	StateUnregistered State = iota
	StateRegistered
)

func (s State) String() string {
	if s == StateRegistered {
		return "registered"
	}
	return "unregistered"
}

// Session 一条实时连接及其注册状态，不持久化
//
// 发送走有界队列，由 WriteLoop 单独写出；队列满时丢弃
type Session struct {
	id        string
	transport Transport
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rate.Limiter

	mu       sync.RWMutex
	state    State
	userID   string
	username string
}

func newSession(transport Transport, queueSize int, limiter *rate.Limiter) *Session {
	return &Session{
		id:        uuid.NewString(),
		transport: transport,
		send:      make(chan []byte, queueSize),
		done:      make(chan struct{}),
		limiter:   limiter,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Identity 返回绑定的身份，未注册时 registered 为 false
func (s *Session) Identity() (userID, username string, registered bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.username, s.state == StateRegistered
}

// bind 后写覆盖，已关闭的会话返回 false
func (s *Session) bind(userID, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed() {
		return false
	}
	s.userID = userID
	s.username = username
	s.state = StateRegistered
	return true
}

// Send 非阻塞入队
func (s *Session) Send(frame []byte) error {
	if s.Closed() {
		return ErrTransportClosed
	}
	select {
	case s.send <- frame:
		return nil
	case <-s.done:
		return ErrTransportClosed
	default:
		return ErrBackpressure
	}
}

// Allow 上行限流，未配置时总是放行
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) Done() <-chan struct{} { return s.done }

// Close 关闭会话和底层连接，可重复调用
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.transport.Close()
	})
}

// WriteLoop 唯一的写协程：按入队顺序写出消息，定时发送 ping
// 写失败时关闭会话并返回错误
func (s *Session) WriteLoop(writeTimeout, pingInterval time.Duration) error {
	var pings <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-s.done:
			return nil
		case frame := <-s.send:
			if err := s.write(websocket.TextMessage, frame, writeTimeout); err != nil {
				s.Close()
				return err
			}
		case <-pings:
			if err := s.write(websocket.PingMessage, nil, writeTimeout); err != nil {
				s.Close()
				return err
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte, timeout time.Duration) error {
	if timeout > 0 {
		if err := s.transport.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	return s.transport.WriteMessage(messageType, data)
}
