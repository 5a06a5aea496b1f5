package handler

import (
	"fmt"
	"net/http"

	"nexus/internal/service"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
)

// fail 按错误类型选择状态码
func fail(c *gin.Context, err error) {
	kind := service.KindOf(err)
	response.Error(c, statusOf(kind), kind, err.Error())
}

// paramError 请求参数错误
func paramError(c *gin.Context, message string) {
	fail(c, fmt.Errorf("%w: %s", service.ErrValidation, message))
}

func statusOf(kind string) int {
	switch kind {
	case service.KindNotFound, service.KindUnknownUser:
		return http.StatusNotFound
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
