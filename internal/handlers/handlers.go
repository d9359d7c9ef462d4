package handlers

import (
	"github.com/gin-gonic/gin"

	"dredd-service/pkg/common"
)

const userIDKey = "userID"

// respond writes a service envelope with its embedded HTTP status.
func respond(c *gin.Context, resp interface{}) {
	switch r := resp.(type) {
	case common.SuccessResponse:
		c.JSON(r.Status, r)
	case common.ErrorResponse:
		c.JSON(r.Status, r)
	default:
		c.JSON(200, resp)
	}
}

func currentUserID(c *gin.Context) uint {
	id, _ := c.Get(userIDKey)
	uid, _ := id.(uint)
	return uid
}
