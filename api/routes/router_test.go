package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authsvc "github.com/tinysprouts/tinysprouts-backend/internal/auth"
	cartsvc "github.com/tinysprouts/tinysprouts-backend/internal/cart"
	"github.com/tinysprouts/tinysprouts-backend/internal/catalog"
	checkoutsvc "github.com/tinysprouts/tinysprouts-backend/internal/checkout"
	ordersvc "github.com/tinysprouts/tinysprouts-backend/internal/orders"
	pkgauth "github.com/tinysprouts/tinysprouts-backend/pkg/auth"
	"github.com/tinysprouts/tinysprouts-backend/pkg/auth/session"
	"github.com/tinysprouts/tinysprouts-backend/pkg/config"
	"github.com/tinysprouts/tinysprouts-backend/pkg/logger"
	"github.com/tinysprouts/tinysprouts-backend/pkg/redis"
)

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) RequestCode(ctx context.Context, rawPhone string) error {
	return nil
}

func (stubAuthService) Verify(ctx context.Context, rawPhone, code string) (*authsvc.VerifyResult, error) {
	return &authsvc.VerifyResult{}, nil
}

func (stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*authsvc.VerifyResult, error) {
	return &authsvc.VerifyResult{}, nil
}

func (stubAuthService) SignOut(ctx context.Context, accessID string) error {
	return nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Flow(ctx context.Context, cartID string) checkoutsvc.Flow {
	return checkoutsvc.NewFlow()
}

func (stubCheckoutService) SubmitShipping(ctx context.Context, cartID string, form checkoutsvc.ShippingForm) (checkoutsvc.Flow, error) {
	return checkoutsvc.NewFlow(), nil
}

func (stubCheckoutService) SubmitPayment(ctx context.Context, cartID string, method string) (checkoutsvc.Flow, error) {
	return checkoutsvc.NewFlow(), nil
}

func (stubCheckoutService) Back(ctx context.Context, cartID string) (checkoutsvc.Flow, error) {
	return checkoutsvc.NewFlow(), nil
}

func (stubCheckoutService) Review(ctx context.Context, cartID string) (checkoutsvc.Quote, error) {
	return checkoutsvc.Quote{}, nil
}

func (stubCheckoutService) Begin(ctx context.Context, id checkoutsvc.Identity) (*checkoutsvc.BeginResult, error) {
	return &checkoutsvc.BeginResult{}, nil
}

func (stubCheckoutService) PlaceCOD(ctx context.Context, id checkoutsvc.Identity) (*ordersvc.Confirmation, error) {
	return &ordersvc.Confirmation{}, nil
}

func (stubCheckoutService) HandleSuccess(ctx context.Context, id checkoutsvc.Identity, params checkoutsvc.SuccessParams) (*ordersvc.Confirmation, error) {
	return &ordersvc.Confirmation{}, nil
}

func (stubCheckoutService) HandleFailure(ctx context.Context, cartID string, params checkoutsvc.FailureParams) (checkoutsvc.Flow, error) {
	return checkoutsvc.NewFlow(), nil
}

type stubOrdersService struct{}

func (stubOrdersService) ListForUser(ctx context.Context, userID string) ([]catalog.Order, error) {
	return nil, nil
}

func (stubOrdersService) GetConfirmation(ctx context.Context, orderID string) (*ordersvc.Confirmation, error) {
	return &ordersvc.Confirmation{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	cartStore, err := cartsvc.NewStore(cartsvc.NewMemorySnapshotStore(), logg)
	if err != nil {
		t.Fatalf("new cart store: %v", err)
	}
	return NewRouter(
		cfg,
		logg,
		(*redis.Client)(nil),
		(*catalog.Client)(nil),
		stubSessionManager{},
		stubAuthService{},
		cartStore,
		stubCheckoutService{},
		stubOrdersService{},
		nil,
	)
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: "user-1",
		Phone:  "9876543210",
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCartRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestCheckoutRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/pay", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestSignOutReachableWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-out", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSignOutRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-out", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestCartSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data cartsvc.State `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 0 {
		t.Fatalf("expected empty cart got %d items", len(envelope.Data.Items))
	}
}

func TestCartFlowsThroughRouter(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)
	token := buildToken(t, cfg)

	body := `{"product_id":"p1","unit_price":"10.00","name":"Wooden Blocks"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data cartsvc.State `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected one line got %d", len(envelope.Data.Items))
	}
}

func TestOrderConfirmationRouteCarriesParam(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order_ABC/confirmation", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
