package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dredd-service/internal/services"
	"dredd-service/pkg/common"
)

type AuthHandler struct {
	Users *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{Users: users}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Users.Register(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Registration failed", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Users.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Login failed", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.Users.Logout(c.Request.Context(), bearerToken(c))
	c.JSON(http.StatusOK, common.NewSuccessResponse(nil, "Logged out"))
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Users.ForgotPassword(req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Request failed", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.NewErrorResponse(err.Error(), nil, http.StatusBadRequest))
		return
	}

	resp, err := h.Users.ResetPassword(req.Token, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.NewErrorResponse("Request failed", nil, http.StatusInternalServerError))
		return
	}
	respond(c, resp)
}

// RequireAuth resolves the bearer token to a user id, rejecting the request
// when the session is missing or expired.
func (h *AuthHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := h.Users.Authenticate(c.Request.Context(), bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				common.NewErrorResponse("Authentication required", nil, http.StatusUnauthorized))
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequireAdmin gates operator endpoints on a shared token. An empty
// configured token disables them outright.
func RequireAdmin(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" || c.GetHeader("X-Admin-Token") != adminToken {
			c.AbortWithStatusJSON(http.StatusForbidden,
				common.NewErrorResponse("Forbidden", nil, http.StatusForbidden))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
