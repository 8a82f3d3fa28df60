package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupbuy-backend/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandleError(t *testing.T) {
	user := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
		userID string
	}{
		{"insufficient balance", apperr.ForUser(apperr.KindInsufficientBalance, user, "short"), http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", user.String()},
		{"not found", apperr.New(apperr.KindOrderNotFound, "gone"), http.StatusNotFound, "ORDER_NOT_FOUND", ""},
		{"already completed", apperr.ErrOrderCompleted, http.StatusConflict, "ORDER_COMPLETED", ""},
		{"retry exhausted", apperr.Processing(errors.New("conflict")), http.StatusServiceUnavailable, "PROCESSING_ERROR", ""},
		{"untyped", errors.New("db down"), http.StatusInternalServerError, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			HandleError(c, tt.err)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success {
				t.Error("success = true")
			}
			if tt.kind == "" {
				if resp.Error != nil {
					t.Errorf("untyped error leaked body %+v", resp.Error)
				}
				return
			}
			if resp.Error == nil || resp.Error.Kind != tt.kind || resp.Error.UserID != tt.userID {
				t.Errorf("error body = %+v, want kind %s user %q", resp.Error, tt.kind, tt.userID)
			}
		})
	}
}

func TestPagination(t *testing.T) {
	p := PaginationQuery{Page: 0, Limit: 1000}
	p.Normalize()
	if p.Page != 1 || p.Limit != 20 || p.Offset() != 0 {
		t.Errorf("normalized = %+v", p)
	}
	p = PaginationQuery{Page: 3, Limit: 10}
	if p.Offset() != 20 {
		t.Errorf("Offset() = %d, want 20", p.Offset())
	}
}
