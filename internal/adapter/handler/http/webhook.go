package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/config"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/port"
	"github.com/gin-gonic/gin"
	"github.com/govalues/decimal"
	"go.uber.org/zap"
)

// Used when the config leaves the pipeline timeout unset. The
// gateway redelivers on timeout, so the whole pipeline must fit
// inside its response window.
const defaultConfirmTimeout = 5 * time.Second

type WebhookHandler struct {
	Handler
	service        port.Service
	defaultMethod  string
	confirmTimeout time.Duration
}

func NewWebhookHandler(service port.Service, conf *config.Gateway, logger *zap.Logger) (*WebhookHandler, error) {
	confirmTimeout := conf.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	return &WebhookHandler{
		Handler:        *NewHandler(logger),
		service:        service,
		defaultMethod:  conf.DefaultMethod,
		confirmTimeout: confirmTimeout,
	}, nil
}

type webhookRequest struct {
	EventType string      `json:"eventType"`
	Data      webhookData `json:"data"`
}

type webhookData struct {
	PaymentKey  string      `json:"paymentKey"`
	OrderID     string      `json:"orderId"`
	Status      string      `json:"status"`
	TotalAmount json.Number `json:"totalAmount"`
	ApprovedAt  string      `json:"approvedAt"`
	Method      string      `json:"method"`
}

type webhookResp struct {
	Success      bool    `json:"success"`
	OrderID      string  `json:"orderId"`
	SettlementID string  `json:"settlementId"`
	PaymentID    *string `json:"paymentId"`
}

// PaymentStatusChanged ingests one gateway delivery. Events that are
// not a terminal "paid" outcome are acknowledged with 200 so the
// gateway does not keep redelivering something we ignore on purpose.
func (wh *WebhookHandler) PaymentStatusChanged(ctx *gin.Context) {
	var req webhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		wh.handleValidationError(ctx, "malformed payload")
		return
	}

	if req.EventType != domain.EventPaymentStatusChanged || req.Data.Status != domain.GatewayStatusDone {
		ctx.JSON(http.StatusOK, gin.H{"message": "Ignored"})
		return
	}

	conf, errMsg := wh.buildConfirmation(&req.Data)
	if errMsg != "" {
		wh.handleValidationError(ctx, errMsg)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), wh.confirmTimeout)
	defer cancel()

	result, err := wh.service.ConfirmPayment(reqCtx, conf)
	if err != nil {
		wh.handleError(ctx, err, req.Data.OrderID)
		return
	}

	wh.handleSuccess(ctx, webhookResp{
		Success:      true,
		OrderID:      string(result.OrderNumber),
		SettlementID: result.SettlementID,
		PaymentID:    result.PaymentID,
	})
}

func (wh *WebhookHandler) buildConfirmation(data *webhookData) (*domain.PaymentConfirmation, string) {
	if data.OrderID == "" {
		return nil, "orderId is required"
	}
	if data.PaymentKey == "" {
		return nil, "paymentKey is required"
	}
	if data.ApprovedAt == "" {
		return nil, "approvedAt is required"
	}

	approvedAt, err := time.Parse(time.RFC3339, data.ApprovedAt)
	if err != nil {
		return nil, "approvedAt is not a valid timestamp"
	}

	amount := decimal.Zero
	if data.TotalAmount != "" {
		amount, err = decimal.Parse(data.TotalAmount.String())
		if err != nil {
			return nil, "totalAmount is not a valid amount"
		}
	}

	method := data.Method
	if method == "" {
		method = wh.defaultMethod
	}

	return &domain.PaymentConfirmation{
		OrderNumber: domain.OrderNumber(data.OrderID),
		PaymentRef:  data.PaymentKey,
		ApprovedAt:  approvedAt,
		Amount:      amount,
		Method:      method,
	}, ""
}
