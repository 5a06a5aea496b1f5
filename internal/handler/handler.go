package handler

import (
	"strconv"

	"nexus/internal/model"
	"nexus/internal/realtime"
	"nexus/internal/service"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledger *service.LedgerService
	stats  *service.StatsService
	relay  *realtime.Relay
}

// NewHandler 创建处理器实例
func NewHandler(ledger *service.LedgerService, stats *service.StatsService, relay *realtime.Relay) *Handler {
	return &Handler{
		ledger: ledger,
		stats:  stats,
		relay:  relay,
	}
}

// GetStats 全站统计
// GET /stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.stats.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stats)
}

// GetUser 查询用户
// GET /user/:id
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.ledger.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// GetUserTransactions 查询用户流水
// GET /user/:id/transactions?page=1&page_size=20
func (h *Handler) GetUserTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, total, err := h.ledger.ListTransactions(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GameRewardRequest 游戏奖励请求，amount 为负数时表示扣减
type GameRewardRequest struct {
	UserID string           `json:"user_id" binding:"required"`
	Game   string           `json:"game"`
	Amount *decimal.Decimal `json:"amount" binding:"required"`
}

// GameReward 发放游戏奖励
// POST /game/reward
func (h *Handler) GameReward(c *gin.Context) {
	var req GameRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		paramError(c, err.Error())
		return
	}

	result, err := h.ledger.Credit(c.Request.Context(), service.CreditRequest{
		UserID: req.UserID,
		Amount: *req.Amount,
		Type:   model.TransactionTypeReward,
		Source: req.Game,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"reward":      result.Applied,
		"new_balance": result.NewBalance,
	})
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ChatHistory 最近的聊天记录
// GET /chat/messages?limit=50
func (h *Handler) ChatHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := h.relay.History(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, messages)
}
