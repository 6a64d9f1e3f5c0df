package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/config"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/response"
	"storefront/internal/token"
)

type stubGateway struct{}

func (stubGateway) KeyID() string { return "rzp_test_key" }

func (stubGateway) CreateOrder(ctx context.Context, amount float64, receipt string, notes map[string]string) (*payment.Order, error) {
	return &payment.Order{ID: "order_stub"}, nil
}

func testRouter(t *testing.T) (*gin.Engine, *token.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer := token.NewIssuer("access-secret", "refresh-secret", time.Minute, time.Hour)
	r := NewRouter(Deps{
		Config: config.Config{
			Env:          "test",
			APIPrefix:    "/api/v1",
			ClientURL:    "http://localhost:5173",
			CookieSecret: "cookie-secret",
		},
		Issuer:   issuer,
		Payments: stubGateway{},
		Metrics:  metrics.New(),
		Started:  time.Now(),
	})
	return r, issuer
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, w.Body.String())
	}
	return env
}

func TestHealthWithoutDatabase(t *testing.T) {
	r, _ := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if env := decodeEnvelope(t, w); !env.Success {
		t.Fatalf("expected success envelope, got %s", w.Body.String())
	}
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	r, _ := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Success {
		t.Fatalf("expected failure envelope")
	}
}

func TestCartRequiresAuthentication(t *testing.T) {
	r, _ := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdminRoutesRejectShoppers(t *testing.T) {
	r, issuer := testRouter(t)
	access, err := issuer.IssueAccess(primitive.NewObjectID().Hex(), models.RoleUser)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestPaymentKeyIsPublic(t *testing.T) {
	r, _ := testRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/key", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rzp_test_key") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpointExposesRequestCounter(t *testing.T) {
	r, _ := testRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "storefront_http_requests_total") {
		t.Fatalf("expected request counter in exposition")
	}
}

func TestCORSAllowsClientOrigin(t *testing.T) {
	r, _ := testRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials to be allowed, got %q", got)
	}
}
