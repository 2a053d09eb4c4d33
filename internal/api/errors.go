package api

import (
	"errors"
	"net/http"

	"RewardLedger/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// statusOf 错误分类 -> HTTP 状态码
func statusOf(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError 5xx 记录错误日志，内部错误不向调用方暴露细节
func writeError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	status := statusOf(err)
	msg := err.Error()
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("op", op).Error("request failed")
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	c.JSON(status, gin.H{"error": msg, "code": apperr.CodeOf(err)})
}
