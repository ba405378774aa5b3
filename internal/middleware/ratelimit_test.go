package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/chat2doc/internal/model"
)

func testRateLimiterConfig(generalBurst, uploadBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // テスト中の補充をほぼ無効化
		GeneralBurst:    generalBurst,
		UploadRate:      rate.Limit(0.001),
		UploadBurst:     uploadBurst,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(ownerID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ask", nil)
	identity := model.NewAnonymousIdentity(ownerID)
	return req.WithContext(ContextWithIdentity(req.Context(), identity))
}

func TestRateLimiter_GeneralBurstThenDenied(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(3, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs("anon_abc"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("anon_abc"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header not set")
	}
}

func TestRateLimiter_OwnersIsolated(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("anon_a"))
	if rec.Code != http.StatusOK {
		t.Fatalf("first owner status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("anon_b"))
	if rec.Code != http.StatusOK {
		t.Errorf("second owner status = %d, limiters not isolated", rec.Code)
	}
}

// TestRateLimiter_UploadTierIndependent はアップロード制限がAPI全般の
// 制限と独立にカウントされることを検証する。
func TestRateLimiter_UploadTierIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(10, 1))
	defer rl.Stop()

	uploadHandler := rl.UploadMiddleware()(okHandler())
	generalHandler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	uploadHandler.ServeHTTP(rec, requestAs("anon_abc"))
	if rec.Code != http.StatusOK {
		t.Fatalf("first upload status = %d, want 200", rec.Code)
	}

	// アップロード上限に達しても一般APIは通る
	rec = httptest.NewRecorder()
	uploadHandler.ServeHTTP(rec, requestAs("anon_abc"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload status = %d, want 429", rec.Code)
	}

	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, requestAs("anon_abc"))
	if rec.Code != http.StatusOK {
		t.Errorf("general request status = %d after upload limit, want 200", rec.Code)
	}
}

func TestRateLimiter_MissingIdentity(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ask", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 without identity", rec.Code)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	config := testRateLimiterConfig(1, 1)
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestAs("anon_abc"))

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.GeneralLimiterCount())
	}

	// TTL（CleanupInterval * 2）経過後にエントリが削除される
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("stale limiter entry was not cleaned up")
}

func TestNewRateLimiterConfig_Defaults(t *testing.T) {
	config := NewRateLimiterConfig(0, 0)
	if config.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", config.GeneralBurst)
	}
	if config.UploadBurst != 10 {
		t.Errorf("UploadBurst = %d, want 10", config.UploadBurst)
	}
}
