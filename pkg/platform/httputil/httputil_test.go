package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "wishguard/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits detail", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, "INTERNAL", body.ErrorCode)
		assert.NotContains(t, body.Message, "db failed")
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := map[dErrors.Code]int{
			dErrors.CodeBotDetected:     http.StatusForbidden,
			dErrors.CodeRateLimited:     http.StatusTooManyRequests,
			dErrors.CodeCaptchaRequired: http.StatusOK,
			dErrors.CodeExpired:         http.StatusBadRequest,
			dErrors.CodeExhausted:       http.StatusBadRequest,
			dErrors.CodeNotFound:        http.StatusBadRequest,
			dErrors.CodeInvalidRequest:  http.StatusBadRequest,
			dErrors.CodeForbidden:       http.StatusForbidden,
		}
		for code, status := range cases {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(code, "msg"))
			assert.Equal(t, status, w.Code, string(code))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, string(code), body.ErrorCode)
			assert.Equal(t, "msg", body.Message)
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Phone string `json:"phone_number"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"phone_number":"09123456789"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "09123456789", dst.Phone)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	err := DecodeJSON(req, &dst)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidRequest))
}
