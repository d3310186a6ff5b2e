package util

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid argument", status.Error(codes.InvalidArgument, "Batch ID required"), http.StatusBadRequest, "Batch ID required"},
		{"failed precondition", status.Error(codes.FailedPrecondition, "nope"), http.StatusBadRequest, "nope"},
		{"unauthenticated", status.Error(codes.Unauthenticated, "Token is not valid"), http.StatusUnauthorized, "Token is not valid"},
		{"permission denied", status.Error(codes.PermissionDenied, "Access denied"), http.StatusForbidden, "Access denied"},
		{"not found", status.Error(codes.NotFound, "Exam not found"), http.StatusNotFound, "Exam not found"},
		{"aborted", status.Error(codes.Aborted, "retry"), http.StatusConflict, "retry"},
		{"internal hides message", status.Error(codes.Internal, "mongo exploded"), http.StatusInternalServerError, ServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, ServerError},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), http.StatusGatewayTimeout, "Request timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleServiceError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["msg"])
		})
	}
}

func TestWriteJSON_PassesSuccessMapThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]interface{}{"success": true, "token": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "abc", body["token"])
}

func TestWriteJSON_WrapsOtherPayloads(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, []string{"a"})

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []interface{}{"a"}, body["data"])
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractToken(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Token abc")
	_, err = ExtractToken(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Bearer abc.def")
	token, err := ExtractToken(r)
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

type sampleRequest struct {
	BatchID string  `json:"batchId" validate:"required"`
	Email   string  `json:"email" validate:"omitempty,email"`
	Amount  float64 `json:"amount" validate:"gt=0"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		ok      bool
		message string
	}{
		{"valid", `{"batchId":"BAT_1","amount":5}`, true, ""},
		{"empty body", ``, false, "Request body is empty"},
		{"malformed", `{"batchId":`, false, "Invalid request payload"},
		{"missing required", `{"amount":5}`, false, "batchId is required"},
		{"bad email", `{"batchId":"B","email":"x","amount":5}`, false, "email must be a valid email"},
		{"non positive", `{"batchId":"B","amount":0}`, false, "amount must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst sampleRequest
			ok := DecodeJSON(rec, r, &dst)

			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, tt.message, decodeBody(t, rec)["msg"])
			}
		})
	}
}
