package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dredd-service/internal/services"
	"dredd-service/pkg/common"
)

type PromotionHandler struct {
	Promotions *services.PromotionService
}

func NewPromotionHandler(promotions *services.PromotionService) *PromotionHandler {
	return &PromotionHandler{Promotions: promotions}
}

func (h *PromotionHandler) Create(c *gin.Context) {
	var req services.PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Promotions.Create(currentUserID(c), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to create promotion", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

// ListActive is public: the marketplace strip on the chat page.
func (h *PromotionHandler) ListActive(c *gin.Context) {
	promos, err := h.Promotions.ListActive()
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to list promotions", nil, http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(promos, "Active promotions"))
}

func (h *PromotionHandler) ListMine(c *gin.Context) {
	promos, err := h.Promotions.ListByUser(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to list promotions", nil, http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(promos, "Your promotions"))
}

func (h *PromotionHandler) Update(c *gin.Context) {
	id := promotionID(c)
	if id == 0 {
		return
	}
	var req services.PromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Promotions.Update(id, currentUserID(c), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to update promotion", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

func (h *PromotionHandler) Delete(c *gin.Context) {
	id := promotionID(c)
	if id == 0 {
		return
	}
	if err := h.Promotions.Delete(id, currentUserID(c)); err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse("Promotion not found", nil, http.StatusNotFound))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Promotion deleted"))
}

func (h *PromotionHandler) Cancel(c *gin.Context) {
	id := promotionID(c)
	if id == 0 {
		return
	}
	if err := h.Promotions.Cancel(id, currentUserID(c)); err != nil {
		c.JSON(http.StatusConflict, common.NewErrorResponse(err.Error(), nil, http.StatusConflict))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Promotion cancelled"))
}

func (h *PromotionHandler) Approve(c *gin.Context) {
	id := promotionID(c)
	if id == 0 {
		return
	}
	if err := h.Promotions.Approve(id); err != nil {
		c.JSON(http.StatusConflict, common.NewErrorResponse(err.Error(), nil, http.StatusConflict))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Promotion approved"))
}

// Click and Impression are public, unauthenticated counters.
func (h *PromotionHandler) Click(c *gin.Context) {
	id := promotionID(c)
	if id == 0 {
		return
	}
	if err := h.Promotions.RecordClick(id); err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse("Promotion not found", nil, http.StatusNotFound))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Recorded"))
}

func (h *PromotionHandler) Impression(c *gin.Context) {
	id := promotionID(c)
	if id == 0 {
		return
	}
	if err := h.Promotions.RecordImpression(id); err != nil {
		c.JSON(http.StatusNotFound, common.NewErrorResponse("Promotion not found", nil, http.StatusNotFound))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Recorded"))
}

func promotionID(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse("Invalid promotion id", nil, http.StatusBadRequest))
		return 0
	}
	return uint(id)
}
