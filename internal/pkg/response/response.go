package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the envelope written by every API route.
type Body struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

func Error(c *gin.Context, status int, code int, message string) {
	c.JSON(status, Body{Success: false, Code: code, Error: message})
}
