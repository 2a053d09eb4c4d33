package api

import (
	"net/http"

	"RewardLedger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PriceHandler 代币价格查询接口
type PriceHandler struct {
	prices *service.PriceService
	logger *logrus.Logger
}

// NewPriceHandler 创建 PriceHandler
func NewPriceHandler(prices *service.PriceService, logger *logrus.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

// GetPrice 读穿缓存查询价格
// GET /api/prices/:mint
func (h *PriceHandler) GetPrice(c *gin.Context) {
	quote, err := h.prices.Price(c.Request.Context(), c.Param("mint"))
	if err != nil {
		writeError(c, h.logger, "GetPrice", err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
