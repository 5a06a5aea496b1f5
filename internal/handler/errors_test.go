package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"nexus/internal/service"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailMapsKindToStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{fmt.Errorf("%w: u1", service.ErrNotFound), http.StatusNotFound, service.KindNotFound},
		{fmt.Errorf("%w: u1", service.ErrUnknownUser), http.StatusNotFound, service.KindUnknownUser},
		{service.ErrValidation, http.StatusBadRequest, service.KindValidation},
		{service.ErrStoreUnavailable, http.StatusServiceUnavailable, service.KindStoreUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, service.KindInternal},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		fail(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body response.ErrorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.kind, body.Kind)
		assert.Equal(t, tc.err.Error(), body.Error)
	}
}

func TestParamError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	paramError(c, "user_id 不能为空")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"参数错误: user_id 不能为空","kind":"validation_error"}`, w.Body.String())
}
