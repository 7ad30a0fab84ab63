package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w
}

func TestHandleErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest},
		{"not found", ErrLeaveNotFound, http.StatusNotFound},
		{"forbidden", ErrPermissionDenied, http.StatusForbidden},
		{"wrapped conflict", fmt.Errorf("submit: %w", ErrAlreadySubmitted), http.StatusConflict},
		{"upstream", Upstream("judge0 unavailable", errors.New("502")), http.StatusBadGateway},
		{"timeout", ErrExecutionTimeout, http.StatusGatewayTimeout},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(func(c *gin.Context) { HandleError(c, tt.err) })
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleErrorHidesInternalDetail(t *testing.T) {
	w := serve(func(c *gin.Context) { HandleError(c, errors.New("dial tcp 10.0.0.1:3306: refused")) })

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "Internal server error" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestHandleProviderError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantTimeout bool
	}{
		{"upstream", Upstream("rate limited", nil), http.StatusOK, false},
		{"timeout", ErrExecutionTimeout, http.StatusOK, true},
		{"validation falls through", ErrUnsupportedLanguage, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(func(c *gin.Context) { HandleProviderError(c, tt.err) })
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body PartialFailure
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Success || body.Error == "" || body.Timeout != tt.wantTimeout {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}

func TestSentinelMatchesAfterWrapping(t *testing.T) {
	err := fmt.Errorf("attach: %w", ErrQuestionSetFrozen)
	if !errors.Is(err, ErrQuestionSetFrozen) {
		t.Fatal("wrapped sentinel should match")
	}
	if errors.Is(err, ErrAlreadySubmitted) {
		t.Fatal("different conflict sentinels should not match")
	}
	if KindOf(err) != KindConflict {
		t.Fatalf("kind = %v", KindOf(err))
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, DefaultPageSize},
		{"?page=3&limit=20", 3, 20},
		{"?page=-1&limit=abc", 1, DefaultPageSize},
		{"?limit=100000", 1, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			page, limit := Pagination(c)
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Fatalf("got (%d,%d), want (%d,%d)", page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}
