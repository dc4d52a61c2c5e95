package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arisuwu/telestream/internal/ledger"
	"github.com/arisuwu/telestream/internal/metadata"
	"github.com/arisuwu/telestream/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// newTestEngine wires every route against an empty session pool. No live
// Telegram session exists in this package's tests: session.Session wraps a
// concrete *gotgproto.Client with no substitutable seam, so the scenarios
// that need a session actually streaming bytes (spec.md §8 scenarios 4 and
// 6, mid-stream failover and client disconnect) are not exercised by any
// test: they rest on streaming.Stream's workload Inc/Dec bracketing, which
// has no test of its own, and on ledger_test.go's balance tests of the
// ledger side. What's exercised here is everything the HTTP layer does
// before it ever needs a working session: URL parsing, CORS, and the
// status dashboard.
func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	pool := session.NewPool(zap.NewNop())
	ldgr := ledger.New()
	resolver := metadata.NewResolver(pool, ldgr, zap.NewNop())
	r := gin.New()
	Load(zap.NewNop(), r, pool, ldgr, resolver, time.Now())
	return r
}

func TestRootRedirects(t *testing.T) {
	r := newTestEngine()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusFound)
	}
}

func TestOptionsPreambleSetsCORSHeaders(t *testing.T) {
	r := newTestEngine()
	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin on OPTIONS preamble")
	}
}

func TestFileRouteRejectsMalformedURL(t *testing.T) {
	r := newTestEngine()
	req := httptest.NewRequest(http.MethodGet, "/not-a-valid-path!!", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d for a malformed media URL", w.Code, http.StatusNotFound)
	}
}

// TestFileRouteReports404WhenDescriptorUnresolvable covers the
// DescriptorNotFound branch of spec.md §7's error table: a well-formed URL
// for a message no session can resolve (here, because no session is
// running at all) surfaces as a 404, never a 500.
func TestFileRouteReports404WhenDescriptorUnresolvable(t *testing.T) {
	r := newTestEngine()
	req := httptest.NewRequest(http.MethodGet, "/123456?hash=abcdef", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStatusRouteReturnsJSONByDefault(t *testing.T) {
	r := newTestEngine()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	ct := w.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("got Content-Type %q, want application/json", ct)
	}
}

func TestStatusRouteRendersHTMLDashboardWithCacheLine(t *testing.T) {
	r := newTestEngine()
	req := httptest.NewRequest(http.MethodGet, "/status?format=html", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "descriptor cache:") {
		t.Error("HTML dashboard missing descriptor cache line")
	}
}
