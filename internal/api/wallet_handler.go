package api

import (
	"net/http"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WalletHandler 钱包奖励查询与领取登记接口
type WalletHandler struct {
	claimability *service.ClaimabilityService
	logger       *logrus.Logger
}

// NewWalletHandler 创建 WalletHandler
func NewWalletHandler(claimability *service.ClaimabilityService, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{claimability: claimability, logger: logger}
}

// GetClaimable 可领取汇总
// GET /api/wallets/:wallet/claimable
func (h *WalletHandler) GetClaimable(c *gin.Context) {
	result, err := h.claimability.Claimable(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		writeError(c, h.logger, "GetClaimable", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetStats 持有人统计
// GET /api/wallets/:wallet/stats
func (h *WalletHandler) GetStats(c *gin.Context) {
	result, err := h.claimability.HolderStats(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		writeError(c, h.logger, "GetStats", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecordClaim 登记已打款的领取
// POST /api/wallets/:wallet/claims  {"epochIds": [...], "txSig": "..."}
func (h *WalletHandler) RecordClaim(c *gin.Context) {
	var req service.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, "RecordClaim", apperr.Validation("invalid request body: %v", err))
		return
	}
	result, err := h.claimability.RecordClaim(c.Request.Context(), c.Param("wallet"), req)
	if err != nil {
		writeError(c, h.logger, "RecordClaim", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
