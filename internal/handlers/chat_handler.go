package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dredd-service/internal/services"
	"dredd-service/pkg/common"
)

type ChatHandler struct {
	Analysis *services.AnalysisService
}

func NewChatHandler(analysis *services.AnalysisService) *ChatHandler {
	return &ChatHandler{Analysis: analysis}
}

// Chat runs one analysis request through the credit-gated pipeline.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req services.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Analysis.Analyze(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Analysis failed", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

// History pages the caller's retained analyses.
func (h *ChatHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	rows, total, err := h.Analysis.History(currentUserID(c), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to load history", nil, http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, common.PaginateResponse(rows, total, page, limit, "Analysis history"))
}
