package api

import (
	"net/http"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MilestoneHandler 里程碑确认内部接口，供资金解锁流程调用
type MilestoneHandler struct {
	milestones *service.MilestoneService
	logger     *logrus.Logger
}

// NewMilestoneHandler 创建 MilestoneHandler
func NewMilestoneHandler(milestones *service.MilestoneService, logger *logrus.Logger) *MilestoneHandler {
	return &MilestoneHandler{milestones: milestones, logger: logger}
}

// Confirm 尝试确认里程碑。首次写入返回 201，已存在返回 200 与先前记录
// POST /internal/milestones
func (h *MilestoneHandler) Confirm(c *gin.Context) {
	var in service.MilestoneInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, "ConfirmMilestone", apperr.Validation("invalid request body: %v", err))
		return
	}
	result, err := h.milestones.TryAcquire(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, "ConfirmMilestone", err)
		return
	}
	status := http.StatusOK
	if result.Acquired {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// Get 查询里程碑确认
// GET /internal/milestones/:commitment_id/:milestone_id
func (h *MilestoneHandler) Get(c *gin.Context) {
	mc, err := h.milestones.Get(c.Request.Context(), c.Param("commitment_id"), c.Param("milestone_id"))
	if err != nil {
		writeError(c, h.logger, "GetMilestone", err)
		return
	}
	c.JSON(http.StatusOK, mc)
}
