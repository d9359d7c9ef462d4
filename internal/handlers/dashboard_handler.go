package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dredd-service/internal/services"
	"dredd-service/pkg/common"
)

type DashboardHandler struct {
	Dashboard *services.DashboardService
	Credits   *services.CreditService
}

func NewDashboardHandler(dashboard *services.DashboardService, credits *services.CreditService) *DashboardHandler {
	return &DashboardHandler{Dashboard: dashboard, Credits: credits}
}

func (h *DashboardHandler) UserDashboard(c *gin.Context) {
	resp, err := h.Dashboard.UserDashboard(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to load dashboard", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

func (h *DashboardHandler) Balance(c *gin.Context) {
	balance, err := h.Credits.GetBalance(currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to load balance", nil, http.StatusInternalServerError))
		return
	}
	c.JSON(http.StatusOK, common.NewSuccessResponse(gin.H{"balance": balance}, "Balance"))
}

func (h *DashboardHandler) AdminSummary(c *gin.Context) {
	resp, err := h.Dashboard.AdminSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Failed to load summary", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}
