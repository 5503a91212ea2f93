package healthsrv

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct {
	healthy, ready bool
}

func (f fakeChecker) Healthy() bool { return f.healthy }
func (f fakeChecker) Ready() bool   { return f.ready }

func TestHealthReflectsChecker(t *testing.T) {
	s := New(fakeChecker{healthy: true, ready: false})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rec.Code)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	s := New(fakeChecker{healthy: true, ready: true})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}
