package realtime

import (
	"context"
	"fmt"

	"nexus/internal/metrics"
	"nexus/internal/model"
	"nexus/internal/service"

	"github.com/sirupsen/logrus"
)

// MessageStore 聊天记录存储
type MessageStore interface {
	Create(ctx context.Context, msg *model.ChatMessage) error
	Recent(ctx context.Context, limit int) ([]*model.ChatMessage, error)
}

// Relay 聊天转发：先落库，成功后广播原始报文
//
// 客户端没有错误回执，失败只记日志和指标
type Relay struct {
	store    MessageStore
	registry *Registry
	log      logrus.FieldLogger
}

func NewRelay(store MessageStore, registry *Registry, log logrus.FieldLogger) *Relay {
	return &Relay{
		store:    store,
		registry: registry,
		log:      log.WithField("component", "relay"),
	}
}

// Submit 处理一条聊天消息
// 同一会话的调用方需串行调用，以保证该会话消息的落库和广播顺序
func (r *Relay) Submit(ctx context.Context, s *Session, evt *MessageEvent) error {
	entry := r.log.WithFields(logrus.Fields{
		"session_id": s.ID(),
		"user_id":    evt.UserID,
	})

	if !r.registry.IsLive(s) {
		metrics.RecordChatMessage("dropped")
		entry.Debug("会话已关闭，丢弃消息")
		return ErrTransportClosed
	}

	msg := &model.ChatMessage{
		UserID:   evt.UserID,
		Username: evt.Username,
		Message:  evt.Message,
	}
	if err := r.store.Create(ctx, msg); err != nil {
		metrics.RecordChatMessage("dropped")
		entry.WithError(err).Error("保存聊天消息失败，消息不广播")
		return fmt.Errorf("%w: %v", service.ErrStoreUnavailable, err)
	}
	metrics.RecordChatMessage("persisted")

	delivered := r.registry.Broadcast(evt.Raw, nil)
	entry.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"delivered":  delivered,
	}).Debug("聊天消息已广播")
	return nil
}

// History 最近的聊天记录，按时间正序
func (r *Relay) History(ctx context.Context, limit int) ([]*model.ChatMessage, error) {
	messages, err := r.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrStoreUnavailable, err)
	}
	return messages, nil
}
