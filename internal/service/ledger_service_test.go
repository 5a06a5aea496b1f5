package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nexus/internal/infrastructure/lock"
	"nexus/internal/model"
	"nexus/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type LedgerServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	locker  *lock.KeyedLocker
	service *LedgerService
	ctx     context.Context
}

func TestLedgerServiceSuite(t *testing.T) {
	suite.Run(t, new(LedgerServiceTestSuite))
}

func (s *LedgerServiceTestSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.locker = lock.NewKeyedLocker()
	log, _ := logtest.NewNullLogger()
	s.service = NewLedgerService(s.db, s.locker, log, "")
	s.ctx = context.Background()
}

func (s *LedgerServiceTestSuite) seedUser(id string, balance int64) {
	s.Require().NoError(s.db.Create(&model.User{
		ID:       id,
		Username: id,
		Balance:  decimal.NewFromInt(balance),
	}).Error)
}

func (s *LedgerServiceTestSuite) transactions(userID string) []model.Transaction {
	var list []model.Transaction
	s.Require().NoError(s.db.Where("user_id = ?", userID).Order("id").Find(&list).Error)
	return list
}

func (s *LedgerServiceTestSuite) TestCreditReturnsBalanceAfterOwnIncrement() {
	s.seedUser("u1", 100)

	result, err := s.service.Credit(s.ctx, CreditRequest{
		UserID: "u1",
		Amount: decimal.NewFromInt(25),
		Type:   model.TransactionTypeReward,
		Source: "slots",
	})
	s.Require().NoError(err)

	s.True(decimal.NewFromInt(25).Equal(result.Applied))
	s.True(decimal.NewFromInt(125).Equal(result.NewBalance), result.NewBalance.String())

	list := s.transactions("u1")
	s.Require().Len(list, 1)
	s.Equal(result.TransactionID, list[0].ID)
	s.True(decimal.NewFromInt(25).Equal(list[0].Amount))
	s.Equal("reward", list[0].Type)
	s.Equal(model.TransactionStatusPending, list[0].Status)

	balance, err := s.service.GetBalance(s.ctx, "u1")
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(125).Equal(balance))
}

func (s *LedgerServiceTestSuite) TestCreditNegativeAmountDebits() {
	s.seedUser("u1", 100)

	result, err := s.service.Credit(s.ctx, CreditRequest{
		UserID: "u1",
		Amount: decimal.RequireFromString("-30.5"),
		Type:   "purchase",
	})
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("69.5").Equal(result.NewBalance), result.NewBalance.String())
	s.Equal("purchase", s.transactions("u1")[0].Type)
}

func (s *LedgerServiceTestSuite) TestCreditDefaultsTypeToReward() {
	s.seedUser("u1", 0)

	_, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.NewFromInt(1)})
	s.Require().NoError(err)
	s.Equal(model.TransactionTypeReward, s.transactions("u1")[0].Type)
}

func (s *LedgerServiceTestSuite) TestConcurrentCreditsSameUserNoLostUpdates() {
	s.seedUser("u1", 100)

	const n = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		balances = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.NewFromInt(10)})
			if !s.NoError(err) {
				return
			}
			mu.Lock()
			balances[result.NewBalance.String()] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	balance, err := s.service.GetBalance(s.ctx, "u1")
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(100+10*n).Equal(balance), balance.String())

	// 每次调用看到的都是自己那次增加之后的余额，互不相同
	s.Len(balances, n)
	s.Len(s.transactions("u1"), n)
}

func (s *LedgerServiceTestSuite) TestCreditDifferentUsersDoNotBlock() {
	s.seedUser("u1", 0)
	s.seedUser("u2", 0)

	unlock, err := s.locker.Acquire(s.ctx, lock.UserLockKey("u1"))
	s.Require().NoError(err)
	defer unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u2", Amount: decimal.NewFromInt(5)})
		done <- err
	}()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("credit for u2 blocked while u1 was locked")
	}
}

func (s *LedgerServiceTestSuite) TestCreditUnknownUserWritesNothing() {
	_, err := s.service.Credit(s.ctx, CreditRequest{UserID: "ghost", Amount: decimal.NewFromInt(10)})
	s.ErrorIs(err, ErrUnknownUser)
	s.Equal(KindUnknownUser, KindOf(err))

	var count int64
	s.Require().NoError(s.db.Model(&model.Transaction{}).Count(&count).Error)
	s.Zero(count)
	s.Require().NoError(s.db.Model(&model.User{}).Count(&count).Error)
	s.Zero(count)
}

func (s *LedgerServiceTestSuite) TestCreditRejectsEmptyUserID() {
	_, err := s.service.Credit(s.ctx, CreditRequest{UserID: " ", Amount: decimal.NewFromInt(1)})
	s.ErrorIs(err, ErrValidation)
}

func (s *LedgerServiceTestSuite) TestCreditWritesOutboxEventWhenTopicConfigured() {
	log, _ := logtest.NewNullLogger()
	svc := NewLedgerService(s.db, s.locker, log, "ledger.events")
	s.seedUser("u1", 1)

	_, err := svc.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.NewFromInt(2), Source: "dice"})
	s.Require().NoError(err)

	var msgs []model.OutboxMessage
	s.Require().NoError(s.db.Find(&msgs).Error)
	s.Require().Len(msgs, 1)
	s.Equal("ledger.events", msgs[0].Topic)
	s.Equal(model.LedgerEventCredited, msgs[0].EventType)
	s.Equal(model.OutboxStatusPending, msgs[0].Status)
	s.Contains(msgs[0].Payload, `"balance":"3"`)
	s.Contains(msgs[0].Payload, `"source":"dice"`)
}

func (s *LedgerServiceTestSuite) TestGetUserNotFound() {
	_, err := s.service.GetUser(s.ctx, "nobody")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.service.GetBalance(s.ctx, "nobody")
	s.ErrorIs(err, ErrNotFound)
}

func (s *LedgerServiceTestSuite) TestEnsureUserKeepsBalance() {
	s.Require().NoError(s.service.EnsureUser(s.ctx, "u1", "alice", "0xabc"))
	_, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.NewFromInt(40)})
	s.Require().NoError(err)

	s.Require().NoError(s.service.EnsureUser(s.ctx, "u1", "alice2", ""))

	user, err := s.service.GetUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("alice2", user.Username)
	s.Equal("0xabc", user.Wallet)
	s.True(decimal.NewFromInt(40).Equal(user.Balance))
}

func (s *LedgerServiceTestSuite) TestListTransactions() {
	s.seedUser("u1", 0)
	for i := 1; i <= 3; i++ {
		_, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.NewFromInt(int64(i))})
		s.Require().NoError(err)
	}

	list, total, err := s.service.ListTransactions(s.ctx, "u1", 1, 2)
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Require().Len(list, 2)
	s.True(decimal.NewFromInt(3).Equal(list[0].Amount))

	_, _, err = s.service.ListTransactions(s.ctx, "nobody", 1, 10)
	s.ErrorIs(err, ErrNotFound)
}

func (s *LedgerServiceTestSuite) sumTransactions(userID string) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.transactions(userID) {
		sum = sum.Add(t.Amount)
	}
	return sum
}

func (s *LedgerServiceTestSuite) TestCreditFractionalAmountsStayExact() {
	s.seedUser("u1", 0)

	_, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.RequireFromString("0.1")})
	s.Require().NoError(err)
	result, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.RequireFromString("0.2")})
	s.Require().NoError(err)
	s.Equal("0.3", result.NewBalance.String())

	for i := 0; i < 100; i++ {
		result, err = s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.RequireFromString("0.01")})
		s.Require().NoError(err)
	}
	s.Equal("1.3", result.NewBalance.String())

	balance, err := s.service.GetBalance(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("1.3", balance.String())
	s.True(balance.Equal(s.sumTransactions("u1")), s.sumTransactions("u1").String())
}

func (s *LedgerServiceTestSuite) TestCreditZeroAmountAppendsTransaction() {
	s.seedUser("u1", 7)

	result, err := s.service.Credit(s.ctx, CreditRequest{UserID: "u1", Amount: decimal.Zero})
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(7).Equal(result.NewBalance))
	s.Len(s.transactions("u1"), 1)
}

func TestCreditStoreFailureRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `users` SET `balance`").WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	log, hook := logtest.NewNullLogger()
	svc := NewLedgerService(db, lock.NewKeyedLocker(), log, "")

	_, err = svc.Credit(context.Background(), CreditRequest{UserID: "u1", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "余额变更失败", hook.LastEntry().Message)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(ErrNotFound))
	assert.Equal(t, KindValidation, KindOf(ErrValidation))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}
