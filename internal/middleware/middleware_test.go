package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newRouter(seen *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		*seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	w := httptest.NewRecorder()
	newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("Expected generated UUID request ID, got %q", seen)
	}
	if w.Header().Get(HeaderRequestID) != seen {
		t.Errorf("Expected response header to echo request ID")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-abc")

	w := httptest.NewRecorder()
	newRouter(&seen).ServeHTTP(w, req)

	if seen != "req-abc" {
		t.Errorf("Expected request ID req-abc, got %q", seen)
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty request ID, got %q", got)
	}
}
