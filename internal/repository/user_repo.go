package repository

import (
	"context"
	"errors"

	"nexus/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("用户不存在")
)

// Totals 用户汇总数据
type Totals struct {
	TotalUsers int64
	TotalDRC   decimal.Decimal
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.User, error) {
	if tx == nil {
		tx = r.db
	}
	var user model.User
	err := tx.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.Balance = user.Balance.Round(model.BalanceScale)
	return &user, nil
}

// Upsert 不存在则创建，存在则更新昵称（钱包地址非空时一并更新）
// 余额不受影响
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	columns := []string{"username"}
	if user.Wallet != "" {
		columns = append(columns, "wallet")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Omit("balance").
		Create(user).Error
}

// AddBalance 原子增加余额，amount 可为负数
// sqlite 的 decimal 列按浮点存储，改为在事务内读出后用 decimal 相加再写回，
// 调用方需持有该用户的锁
func (r *UserRepository) AddBalance(ctx context.Context, tx *gorm.DB, id string, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	if tx.Dialector.Name() == "sqlite" {
		return r.addBalanceExact(ctx, tx, id, amount)
	}

	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) addBalanceExact(ctx context.Context, tx *gorm.DB, id string, amount decimal.Decimal) error {
	user, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}
	balance := user.Balance.Add(amount).Round(model.BalanceScale)
	return tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("balance", balance).Error
}

// Totals 统计用户数和余额总和，空表返回 0
func (r *UserRepository) Totals(ctx context.Context) (*Totals, error) {
	var row struct {
		TotalUsers int64
		TotalDRC   decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Select("COUNT(*) AS total_users, COALESCE(SUM(balance), 0) AS total_drc").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &Totals{TotalUsers: row.TotalUsers, TotalDRC: row.TotalDRC.Round(model.BalanceScale)}, nil
}
