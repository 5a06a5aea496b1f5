package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nexus/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// UserDirectory 注册握手时写入用户
type UserDirectory interface {
	EnsureUser(ctx context.Context, userID, username, wallet string) error
}

type GatewayOptions struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
}

// Gateway websocket 接入点
type Gateway struct {
	upgrader websocket.Upgrader
	registry *Registry
	relay    *Relay
	users    UserDirectory
	opts     GatewayOptions
	log      logrus.FieldLogger
}

func NewGateway(registry *Registry, relay *Relay, users UserDirectory, opts GatewayOptions, log logrus.FieldLogger) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		registry: registry,
		relay:    relay,
		users:    users,
		opts:     opts,
		log:      log.WithField("component", "gateway"),
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WithError(err).Warn("websocket 升级失败")
		return
	}

	s := g.registry.Admit(conn)
	g.log.WithFields(logrus.Fields{
		"session_id": s.ID(),
		"remote":     r.RemoteAddr,
	}).Info("新的 websocket 连接")

	go func() {
		if err := s.WriteLoop(g.opts.WriteTimeout, g.opts.PingInterval); err != nil {
			g.log.WithError(err).WithField("session_id", s.ID()).Debug("写协程退出")
		}
	}()

	g.readLoop(r.Context(), s, conn)
}

func (g *Gateway) readLoop(ctx context.Context, s *Session, conn *websocket.Conn) {
	defer func() {
		g.registry.Remove(s)
		g.log.WithField("session_id", s.ID()).Info("websocket 断开")
	}()

	if g.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(g.opts.MaxMessageBytes)
	}
	if g.opts.PongTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
		})
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.WithError(err).WithField("session_id", s.ID()).Debug("连接异常关闭")
			}
			return
		}
		if g.opts.PongTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(g.opts.PongTimeout))
		}
		g.dispatch(ctx, s, raw)
	}
}

// dispatch 处理一条上行事件，无效事件直接丢弃
func (g *Gateway) dispatch(ctx context.Context, s *Session, raw []byte) {
	entry := g.log.WithField("session_id", s.ID())

	if !s.Allow() {
		metrics.RecordEvent("any", "rate_limited")
		entry.Debug("超出限流，丢弃事件")
		return
	}

	evt, err := ParseEvent(raw)
	if err != nil {
		label := "invalid"
		if errors.Is(err, ErrUnknownEvent) {
			label = "unknown"
		}
		metrics.RecordEvent("any", label)
		entry.WithError(err).Warn("丢弃无效事件")
		return
	}

	switch e := evt.(type) {
	case *RegisterEvent:
		if !g.registry.Register(s, e.UserID, e.Username) {
			metrics.RecordEvent(string(EventRegister), "closed")
			return
		}
		if g.users != nil {
			if err := g.users.EnsureUser(ctx, e.UserID, e.Username, e.Wallet); err != nil {
				entry.WithError(err).WithField("user_id", e.UserID).Warn("写入用户失败")
			}
		}
		metrics.RecordEvent(string(EventRegister), "ok")
	case *MessageEvent:
		if err := g.relay.Submit(ctx, s, e); err != nil {
			metrics.RecordEvent(string(EventMessage), "dropped")
			return
		}
		metrics.RecordEvent(string(EventMessage), "ok")
	}
}
