package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/metrics"
	"storefront/internal/response"
	"storefront/internal/token"
)

func newGuardedRouter(issuer *token.Issuer, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", AuthGuard(issuer, roles...), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": id.Hex(), "role": Role(c)})
	})
	return r
}

func TestAuthGuardMissingToken(t *testing.T) {
	issuer := token.NewIssuer("a", "r", time.Minute, time.Hour)
	r := newGuardedRouter(issuer)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Success || body.Message != "missing token" {
		t.Fatalf("unexpected envelope %+v", body)
	}
}

func TestAuthGuardAcceptsValidToken(t *testing.T) {
	issuer := token.NewIssuer("a", "r", time.Minute, time.Hour)
	r := newGuardedRouter(issuer)
	userID := primitive.NewObjectID()
	raw, err := issuer.IssueAccess(userID.Hex(), "user")
	if err != nil {
		t.Fatalf("IssueAccess returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["userId"] != userID.Hex() || body["role"] != "user" {
		t.Fatalf("unexpected context values %v", body)
	}
}

func TestAuthGuardRejectsWrongRole(t *testing.T) {
	issuer := token.NewIssuer("a", "r", time.Minute, time.Hour)
	r := newGuardedRouter(issuer, "admin")
	raw, _ := issuer.IssueAccess(primitive.NewObjectID().Hex(), "user")

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAuthGuardRejectsRefreshToken(t *testing.T) {
	issuer := token.NewIssuer("a", "r", time.Minute, time.Hour)
	r := newGuardedRouter(issuer)
	raw, _ := issuer.IssueRefresh(primitive.NewObjectID().Hex(), "user")

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRecoveryHidesStackInProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, production := range []bool{true, false} {
		r := gin.New()
		r.Use(Recovery(production))
		r.GET("/boom", func(c *gin.Context) { panic("boom") })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		var body response.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if production && body.Stack != "" {
			t.Fatal("stack must be hidden in production")
		}
		if !production && body.Stack == "" {
			t.Fatal("stack expected outside production")
		}
	}
}

func TestFailAttachesStackOutsideProduction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, production := range []bool{true, false} {
		r := gin.New()
		r.Use(Recovery(production))
		r.GET("/orders", func(c *gin.Context) {
			response.Fail(c, "GET /orders", errors.New("connection reset"))
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		var body response.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body.Message != "internal server error" {
			t.Fatalf("unexpected message %q", body.Message)
		}
		if production && body.Stack != "" {
			t.Fatal("stack must be hidden in production")
		}
		if !production && body.Stack == "" {
			t.Fatal("stack expected outside production")
		}
	}
}

func TestRequestIDAssignedAndEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "3b241101-e2bb-4255-8caf-4136c566a962")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "3b241101-e2bb-4255-8caf-4136c566a962" {
		t.Fatalf("expected caller id echoed, got %q", got)
	}
}

func TestMetricsCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "storefront_http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected storefront_http_requests_total to be exported")
	}
}
