package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody 失败响应
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Success 成功时直接返回业务数据，不加外层包装
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error 返回失败响应并中止后续处理
func Error(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Error: message,
		Kind:  kind,
	})
}
