package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexus/internal/infrastructure/lock"
	"nexus/internal/metrics"
	"nexus/internal/model"
	"nexus/internal/repository"
	"nexus/pkg/idgen"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerService 余额账本服务
// 同一用户的余额变更串行执行，不同用户互不阻塞
type LedgerService struct {
	db              *gorm.DB
	locker          lock.Locker
	log             logrus.FieldLogger
	outboxTopic     string
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

// NewLedgerService outboxTopic 为空时不写账本事件
func NewLedgerService(db *gorm.DB, locker lock.Locker, log logrus.FieldLogger, outboxTopic string) *LedgerService {
	return &LedgerService{
		db:              db,
		locker:          locker,
		log:             log.WithField("component", "ledger"),
		outboxTopic:     outboxTopic,
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type CreditRequest struct {
	UserID string
	Amount decimal.Decimal // 可为负数，表示扣减
	Type   string
	Source string // 来源，如游戏名，只进入日志和事件
}

type CreditResult struct {
	Applied       decimal.Decimal
	NewBalance    decimal.Decimal
	TransactionID int64
}

// Credit 变更余额并追加流水，返回本次变更后的余额
//
// 加锁 -> 事务内 增加余额 / 回读余额 / 写流水 / 写事件 -> 提交 -> 释放锁
// 回读和增加在同一个事务里，返回值一定包含本次变更
func (s *LedgerService) Credit(ctx context.Context, req CreditRequest) (result *CreditResult, err error) {
	start := time.Now()
	if req.Type == "" {
		req.Type = model.TransactionTypeReward
	}
	defer func() {
		metrics.RecordCredit(req.Type, creditResultLabel(err), time.Since(start))
	}()

	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id 不能为空", ErrValidation)
	}

	unlock, err := s.locker.Acquire(ctx, lock.UserLockKey(req.UserID))
	if err != nil {
		return nil, fmt.Errorf("%w: 获取用户锁失败: %v", ErrStoreUnavailable, err)
	}
	defer unlock()

	result = &CreditResult{Applied: req.Amount}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.AddBalance(ctx, tx, req.UserID, req.Amount); err != nil {
			return err
		}

		user, err := s.userRepo.GetByID(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		result.NewBalance = user.Balance

		trans := &model.Transaction{
			UserID: req.UserID,
			Amount: req.Amount,
			Type:   req.Type,
			Status: model.TransactionStatusPending,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}
		result.TransactionID = trans.ID

		if s.outboxTopic == "" {
			return nil
		}
		return s.writeCreditedEvent(ctx, tx, req, result)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, req.UserID)
		}
		s.log.WithError(err).WithField("user_id", req.UserID).Error("余额变更失败")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":        req.UserID,
		"amount":         req.Amount.String(),
		"type":           req.Type,
		"source":         req.Source,
		"balance":        result.NewBalance.String(),
		"transaction_id": result.TransactionID,
	}).Info("余额变更成功")

	return result, nil
}

func (s *LedgerService) writeCreditedEvent(ctx context.Context, tx *gorm.DB, req CreditRequest, result *CreditResult) error {
	payload, err := json.Marshal(model.LedgerEvent{
		Event:         model.LedgerEventCredited,
		UserID:        req.UserID,
		Amount:        req.Amount.String(),
		Type:          req.Type,
		Source:        req.Source,
		Balance:       result.NewBalance.String(),
		TransactionID: result.TransactionID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	msg := &model.OutboxMessage{
		MessageKey: idgen.GenerateEventNo(),
		Topic:      s.outboxTopic,
		EventType:  model.LedgerEventCredited,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}

// GetBalance 查询余额
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// GetUser 查询用户
func (s *LedgerService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

// EnsureUser 注册握手时写入用户，已存在则只更新昵称/钱包
func (s *LedgerService) EnsureUser(ctx context.Context, userID, username, wallet string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user_id 不能为空", ErrValidation)
	}
	err := s.userRepo.Upsert(ctx, &model.User{
		ID:       userID,
		Username: username,
		Wallet:   wallet,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListTransactions 查询用户流水，按时间倒序
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]*model.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, 0, err
	}
	list, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return list, total, nil
}

func creditResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err)
}
