package http

import (
	"net/http"

	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatusMap = map[error]int{
	domain.ErrInternal:        http.StatusInternalServerError,
	domain.ErrDataNotFound:    http.StatusNotFound,
	domain.ErrConflictingData: http.StatusConflict,

	domain.ErrBadRequest: http.StatusBadRequest,

	// Anomalies surface as 500 so the gateway keeps retrying while
	// operators investigate; they are never silently absorbed.
	domain.ErrPaymentRefMismatch:    http.StatusInternalServerError,
	domain.ErrSettlementNotRecorded: http.StatusInternalServerError,
}

type Handler struct {
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// handleValidationError answers a malformed payload. The gateway is
// not expected to resend these; if it does, the same 400 recurs.
func (h *Handler) handleValidationError(ctx *gin.Context, msg string) {
	ctx.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// handleError maps a pipeline sentinel onto the HTTP contract,
// echoing the order id so gateway-side logs can be correlated.
func (h *Handler) handleError(ctx *gin.Context, err error, orderID string) {
	statusCode, ok := errorStatusMap[err]
	if !ok {
		statusCode = http.StatusInternalServerError
		h.logger.Error("error processing request", zap.Error(err))
	}
	ctx.JSON(statusCode, gin.H{"error": err.Error(), "orderId": orderID})
}

func (h *Handler) handleSuccess(ctx *gin.Context, data any) {
	ctx.JSON(http.StatusOK, data)
}
