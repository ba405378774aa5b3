package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestAuth0Server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("grant_type") != "authorization_code" {
			http.Error(w, "unsupported grant type", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("code") != "valid-code" {
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(auth0TokenResponse{
			AccessToken: "test-access-token",
			TokenType:   "Bearer",
			ExpiresIn:   86400,
		})
	})

	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(auth0UserInfo{
			Sub:     "auth0|user-1",
			Email:   "taro@example.com",
			Name:    "山田太郎",
			Picture: "https://example.com/taro.png",
		})
	})

	return httptest.NewServer(mux)
}

func newTestProvider(serverURL string) *Auth0Provider {
	return NewAuth0Provider(Auth0Config{
		Domain:       "test.auth0.example.com",
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		BaseURL:      serverURL,
	})
}

func TestAuth0Provider_GetLoginURL(t *testing.T) {
	provider := NewAuth0Provider(Auth0Config{
		Domain:      "test.auth0.example.com",
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/callback",
	})

	loginURL := provider.GetLoginURL("test-state")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}
	if parsed.Host != "test.auth0.example.com" {
		t.Errorf("host = %q, want test.auth0.example.com", parsed.Host)
	}
	if parsed.Path != "/authorize" {
		t.Errorf("path = %q, want /authorize", parsed.Path)
	}

	q := parsed.Query()
	wantParams := map[string]string{
		"client_id":     "test-client-id",
		"redirect_uri":  "http://localhost:8080/auth/callback",
		"response_type": "code",
		"state":         "test-state",
	}
	for key, want := range wantParams {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
	if scope := q.Get("scope"); !strings.Contains(scope, "openid") {
		t.Errorf("scope = %q, want openid included", scope)
	}
}

func TestAuth0Provider_GetLogoutURL(t *testing.T) {
	provider := NewAuth0Provider(Auth0Config{
		Domain:   "test.auth0.example.com",
		ClientID: "test-client-id",
	})

	logoutURL := provider.GetLogoutURL("http://localhost:8080/")

	parsed, err := url.Parse(logoutURL)
	if err != nil {
		t.Fatalf("failed to parse logout URL: %v", err)
	}
	if parsed.Path != "/v2/logout" {
		t.Errorf("path = %q, want /v2/logout", parsed.Path)
	}
	if got := parsed.Query().Get("returnTo"); got != "http://localhost:8080/" {
		t.Errorf("returnTo = %q, want http://localhost:8080/", got)
	}
}

func TestAuth0Provider_ExchangeCode(t *testing.T) {
	server := newTestAuth0Server(t)
	defer server.Close()

	provider := newTestProvider(server.URL)

	userInfo, err := provider.ExchangeCode(context.Background(), "valid-code")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}

	if userInfo.ProviderUserID != "auth0|user-1" {
		t.Errorf("ProviderUserID = %q, want auth0|user-1", userInfo.ProviderUserID)
	}
	if userInfo.Email != "taro@example.com" {
		t.Errorf("Email = %q, want taro@example.com", userInfo.Email)
	}
	if userInfo.Name != "山田太郎" {
		t.Errorf("Name = %q, want 山田太郎", userInfo.Name)
	}
}

func TestAuth0Provider_ExchangeCode_InvalidCode(t *testing.T) {
	server := newTestAuth0Server(t)
	defer server.Close()

	provider := newTestProvider(server.URL)

	if _, err := provider.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Error("ExchangeCode succeeded with invalid code")
	}
}

func TestAuth0Provider_ExchangeCode_ServerDown(t *testing.T) {
	server := newTestAuth0Server(t)
	provider := newTestProvider(server.URL)
	server.Close()

	if _, err := provider.ExchangeCode(context.Background(), "valid-code"); err == nil {
		t.Error("ExchangeCode succeeded against a closed server")
	}
}
