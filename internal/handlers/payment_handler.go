package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dredd-service/internal/services"
	"dredd-service/pkg/common"
)

type PaymentHandler struct {
	Payments *services.PaymentService
	Chain    *services.ChainPaymentService
	NP       *services.NOWPaymentsService
}

func NewPaymentHandler(payments *services.PaymentService, chain *services.ChainPaymentService, np *services.NOWPaymentsService) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Chain: chain, NP: np}
}

// CreatePayment is the single entry point: validation picks the gateway from
// the normalized method.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req services.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Payments.CreatePayment(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		// Gateway rejections (unsupported currency, below minimum, missing
		// payout address) are the caller's to fix.
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}
	respond(c, resp)
}

// VerifyChainPayment takes the client-submitted tx hash for a direct
// transfer and settles on success.
func (h *PaymentHandler) VerifyChainPayment(c *gin.Context) {
	var req struct {
		TransactionID string `json:"transaction_id" binding:"required"`
		TxHash        string `json:"tx_hash" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Chain.VerifyPayment(c.Request.Context(), currentUserID(c), req.TransactionID, req.TxHash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Verification failed", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

// PaymentStatus polls NOWPayments for a non-terminal payment and converges
// the local record.
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	paymentID := c.Param("id")

	resp, err := h.NP.CheckPaymentStatus(currentUserID(c), paymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Status check failed", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

// GetTransaction returns one of the caller's transactions.
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	trx, err := h.Payments.GetTransaction(currentUserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse("Transaction not found", nil, http.StatusNotFound))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(trx, "Transaction"))
}

// ListTransactions pages the caller's purchase history.
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	trxs, total, err := h.Payments.ListTransactions(currentUserID(c), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to list transactions", nil, http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(trxs, total, page, limit, "Transactions"))
}
