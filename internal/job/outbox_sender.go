package job

import (
	"context"
	"sync"
	"time"

	"nexus/internal/config"
	"nexus/internal/infrastructure/mq"
	"nexus/internal/metrics"
	"nexus/internal/model"
	"nexus/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxSender 将账本事件从 outbox 表投递到 kafka
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	log        logrus.FieldLogger
	stopCh     chan struct{}
	stopOnce   sync.Once
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg config.OutboxConfig, log logrus.FieldLogger) *OutboxSender {
	s := &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		log:        log.WithField("component", "outbox_sender"),
		stopCh:     make(chan struct{}),
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		maxRetry:   cfg.MaxRetryCount,
	}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.maxRetry <= 0 {
		s.maxRetry = 5
	}
	return s
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ProcessPending 投递一批待发送消息，返回成功数量
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.FetchPending(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("查询消息失败")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.send(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) bool {
	entry := s.log.WithFields(logrus.Fields{
		"id":    msg.ID,
		"topic": msg.Topic,
		"key":   msg.MessageKey,
	})

	err := s.publisher.Publish(msg.Topic, msg.MessageKey, []byte(msg.Payload))
	if err == nil {
		if updateErr := s.outboxRepo.MarkSent(ctx, msg.ID); updateErr != nil {
			entry.WithError(updateErr).Error("更新消息状态失败")
		} else {
			entry.Debug("消息发送成功")
		}
		metrics.RecordOutbox("sent")
		return true
	}

	entry.WithError(err).Warn("消息发送失败")
	if err := s.outboxRepo.RecordFailure(ctx, msg, s.maxRetry); err != nil {
		entry.WithError(err).Error("记录失败次数失败")
	}

	if msg.RetryCount+1 >= s.maxRetry {
		metrics.RecordOutbox("failed")
		entry.Warn("消息超过最大重试次数，标记为失败")
	} else {
		metrics.RecordOutbox("retry")
	}
	return false
}
