package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖
type Handlers struct {
	Wallet    *WalletHandler
	Ranking   *RankingHandler
	Price     *PriceHandler
	Milestone *MilestoneHandler
	// StoreKind persistent / local，用于健康检查展示
	StoreKind string
}

// RegisterRoutes 注册全部 HTTP 路由
func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": h.StoreKind})
	})

	apiGroup := r.Group("/api")
	apiGroup.GET("/wallets/:wallet/claimable", h.Wallet.GetClaimable)
	apiGroup.GET("/wallets/:wallet/stats", h.Wallet.GetStats)
	apiGroup.POST("/wallets/:wallet/claims", h.Wallet.RecordClaim)
	apiGroup.GET("/rankings", h.Ranking.ListRankings)
	apiGroup.GET("/prices/:mint", h.Price.GetPrice)

	internal := r.Group("/internal")
	internal.POST("/milestones", h.Milestone.Confirm)
	internal.GET("/milestones/:commitment_id/:milestone_id", h.Milestone.Get)
}
