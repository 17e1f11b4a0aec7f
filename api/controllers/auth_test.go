package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tinysprouts/tinysprouts-backend/api/middleware"
	authsvc "github.com/tinysprouts/tinysprouts-backend/internal/auth"
	"github.com/tinysprouts/tinysprouts-backend/internal/catalog"
	pkgerrors "github.com/tinysprouts/tinysprouts-backend/pkg/errors"
)

type stubAuthService struct {
	requested string
	verified  [2]string
	signedOut string
	result    *authsvc.VerifyResult
	err       error
}

func (s *stubAuthService) RequestCode(ctx context.Context, rawPhone string) error {
	s.requested = rawPhone
	return s.err
}

func (s *stubAuthService) Verify(ctx context.Context, rawPhone, code string) (*authsvc.VerifyResult, error) {
	s.verified = [2]string{rawPhone, code}
	return s.result, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*authsvc.VerifyResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) SignOut(ctx context.Context, accessID string) error {
	s.signedOut = accessID
	return s.err
}

func TestAuthRequestCodeForwardsPhone(t *testing.T) {
	svc := &stubAuthService{}
	handler := AuthRequestCode(svc, controllerLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/request-code", strings.NewReader(`{"phone":"9876543210"}`))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.requested != "9876543210" {
		t.Fatalf("expected phone forwarded, got %q", svc.requested)
	}
}

func TestAuthRequestCodeRejectsEmptyBody(t *testing.T) {
	svc := &stubAuthService{}
	handler := AuthRequestCode(svc, controllerLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/request-code", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if svc.requested != "" {
		t.Fatal("expected invalid body to stop before the service")
	}
}

func TestAuthVerifyReturnsSession(t *testing.T) {
	svc := &stubAuthService{
		result: &authsvc.VerifyResult{
			User:        &catalog.User{ID: "u1", Phone: "9876543210"},
			AccessToken: "access",
		},
	}
	handler := AuthVerify(svc, controllerLogger(t))

	body := `{"phone":"9876543210","code":"123456"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.verified != [2]string{"9876543210", "123456"} {
		t.Fatalf("unexpected verify args %v", svc.verified)
	}

	var envelope struct {
		Data authsvc.VerifyResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AccessToken != "access" {
		t.Fatalf("expected access token in response, got %q", envelope.Data.AccessToken)
	}
}

func TestAuthVerifySurfacesUnauthorized(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid code")}
	handler := AuthVerify(svc, controllerLogger(t))

	body := `{"phone":"9876543210","code":"000000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthSignOutUsesSessionFromContext(t *testing.T) {
	svc := &stubAuthService{}
	handler := AuthSignOut(svc, controllerLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-out", nil)
	rc := middleware.WithUserID(req.Context(), "u1")
	req = req.WithContext(rc)
	resp := httptest.NewRecorder()
	handler(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without access id, got %d", resp.Code)
	}
	if svc.signedOut != "" {
		t.Fatal("expected missing session to stop before the service")
	}
}
