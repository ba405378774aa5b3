package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/chat2doc/internal/auth"
	"github.com/hitoshi/chat2doc/internal/middleware"
	"github.com/hitoshi/chat2doc/internal/model"
)

// mockAuthService はテスト用のAuthServiceInterfaceモック。
type mockAuthService struct {
	handleCallbackFn func(ctx context.Context, code string) (string, model.Identity, error)
}

func (m *mockAuthService) LoginURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (m *mockAuthService) LogoutURL(returnTo string) string {
	return "https://idp.example.com/v2/logout?returnTo=" + returnTo
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (string, model.Identity, error) {
	return m.handleCallbackFn(ctx, code)
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		CookieSecure:  false,
		SessionMaxAge: 604800,
	}
}

func TestAuthHandler_Login(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("oauth_state cookie not set")
	}
	if !stateCookie.HttpOnly {
		t.Error("oauth_state cookie is not HttpOnly")
	}

	location := rec.Header().Get("Location")
	if location != "https://idp.example.com/authorize?state="+stateCookie.Value {
		t.Errorf("redirect location = %q does not carry the state", location)
	}
}

func TestAuthHandler_Callback_Success(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (string, model.Identity, error) {
			if code != "valid-code" {
				return "", model.Identity{}, errors.New("invalid code")
			}
			return "session-token", model.Identity{ID: "auth0|user-1", Authenticated: true}, nil
		},
	}
	h := NewAuthHandler(service, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=valid-code&state=test-state", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "test-state"})
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "http://localhost:3000" {
		t.Errorf("redirect location = %q, want base URL", got)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("session cookie not set")
	}
	if sessionCookie.Value != "session-token" {
		t.Errorf("session cookie value = %q, want session-token", sessionCookie.Value)
	}
	if sessionCookie.MaxAge != 604800 {
		t.Errorf("session cookie MaxAge = %d, want 604800", sessionCookie.MaxAge)
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}
}

// TestAuthHandler_Callback_StateMismatch はstate検証の失敗が400になることを検証する。
func TestAuthHandler_Callback_StateMismatch(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=valid-code&state=attacker-state", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "original-state"})
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthHandler_Callback_MissingCode(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=test-state", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "test-state"})
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthHandler_Logout_ClearsCookieAndRedirectsToIdP(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie was not cleared")
	}

	if got := rec.Header().Get("Location"); got != "https://idp.example.com/v2/logout?returnTo=http://localhost:3000" {
		t.Errorf("redirect location = %q, want IdP logout URL", got)
	}
}

func TestAuthHandler_Session(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	identity := model.Identity{ID: "auth0|user-1", Name: "山田太郎", Email: "taro@example.com", Authenticated: true}
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), identity))
	rec := httptest.NewRecorder()

	h.Session(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["id"] != "auth0|user-1" {
		t.Errorf("id = %v, want auth0|user-1", body["id"])
	}
	if body["authenticated"] != true {
		t.Errorf("authenticated = %v, want true", body["authenticated"])
	}
}

func TestAuthHandler_Session_Anonymous(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), model.NewAnonymousIdentity("anon_abc")))
	rec := httptest.NewRecorder()

	h.Session(rec, req)

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["authenticated"] != false {
		t.Errorf("authenticated = %v, want false", body["authenticated"])
	}
}

func TestAuthHandler_RealtimeToken(t *testing.T) {
	minter := auth.NewRealtimeTokenMinter("realtime-secret", 0)
	h := NewAuthHandler(&mockAuthService{}, minter, testAuthConfig())

	// 認証済みIdentityには発行される
	req := httptest.NewRequest(http.MethodPost, "/auth/realtime-token", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), model.Identity{ID: "auth0|user-1", Authenticated: true}))
	rec := httptest.NewRecorder()

	h.RealtimeToken(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["token"] == "" {
		t.Error("token is empty")
	}

	// 匿名Identityには401
	req = httptest.NewRequest(http.MethodPost, "/auth/realtime-token", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), model.NewAnonymousIdentity("anon_abc")))
	rec = httptest.NewRecorder()

	h.RealtimeToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestAuthHandler_RealtimeToken_Disabled(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/realtime-token", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), model.Identity{ID: "auth0|user-1", Authenticated: true}))
	rec := httptest.NewRecorder()

	h.RealtimeToken(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when the feature is disabled", rec.Code)
	}
}
