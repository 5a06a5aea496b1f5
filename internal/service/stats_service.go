package service

import (
	"context"
	"fmt"
	"time"

	"nexus/internal/config"
	"nexus/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricePoint 价格点，timestamp 为毫秒
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

type Stats struct {
	TotalUsers   int64           `json:"total_users"`
	TotalDRC     decimal.Decimal `json:"total_drc"`
	DRCPrice     float64         `json:"drc_price"`
	PriceHistory []PricePoint    `json:"price_history"`
}

// StatsService 只读统计
type StatsService struct {
	userRepo *repository.UserRepository
	cfg      config.StatsConfig
	now      func() time.Time
}

func NewStatsService(db *gorm.DB, cfg config.StatsConfig) *StatsService {
	return &StatsService{
		userRepo: repository.NewUserRepository(db),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Snapshot 汇总用户数和余额总量，价格为配置的静态值
func (s *StatsService) Snapshot(ctx context.Context) (*Stats, error) {
	totals, err := s.userRepo.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now()
	return &Stats{
		TotalUsers: totals.TotalUsers,
		TotalDRC:   totals.TotalDRC,
		DRCPrice:   s.cfg.DRCPrice,
		PriceHistory: []PricePoint{
			{Timestamp: now.Add(-24 * time.Hour).UnixMilli(), Price: s.cfg.PreviousPrice},
			{Timestamp: now.UnixMilli(), Price: s.cfg.DRCPrice},
		},
	}, nil
}
