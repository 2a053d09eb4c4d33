package api

import (
	"net/http"
	"strconv"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RankingHandler token 曝光度排行接口
type RankingHandler struct {
	ranking *service.RankingService
	logger  *logrus.Logger
}

// NewRankingHandler 创建 RankingHandler
func NewRankingHandler(ranking *service.RankingService, logger *logrus.Logger) *RankingHandler {
	return &RankingHandler{ranking: ranking, logger: logger}
}

// ListRankings 排行列表
// GET /api/rankings?period=7d&limit=50
func (h *RankingHandler) ListRankings(c *gin.Context) {
	q := service.RankingQuery{
		Period: service.ParsePeriod(c.Query("period")),
		Limit:  service.DefaultRankingLimit,
	}
	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > service.MaxRankingLimit {
			writeError(c, h.logger, "ListRankings", apperr.Validation("limit must be an integer between 1 and %d", service.MaxRankingLimit))
			return
		}
		q.Limit = limit
	}

	result, err := h.ranking.Rank(c.Request.Context(), q)
	if err != nil {
		writeError(c, h.logger, "ListRankings", err)
		return
	}
	c.JSON(http.StatusOK, result)
}
