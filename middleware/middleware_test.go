package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"piggybank/utils"
)

var testKey = []byte("test-secret")

func protected() http.Handler {
	return AuthMiddleware(testKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(userID + "|" + UserNameFromContext(r.Context())))
	}))
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := IssueToken(testKey, "u42", "Alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, _ := IssueToken(testKey, "u42", "", -time.Hour)
	foreign, _ := IssueToken([]byte("other"), "u42", "", time.Hour)
	numeric, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}).SignedString(testKey)
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@y.z"}).SignedString(testKey)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, "u42|Alice"},
		{"without bearer prefix", valid, http.StatusOK, "u42|Alice"},
		{"numeric user id", "Bearer " + numeric, http.StatusOK, "7|"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + foreign, http.StatusUnauthorized, ""},
		{"no user id", "Bearer " + noUser, http.StatusUnauthorized, ""},
		{"garbage", "Bearer abc.def", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			protected().ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestRateLimitHeaders(t *testing.T) {
	r := newEngine(RateLimit(utils.NewRateLimiter(2, time.Minute)))

	for i, want := range []string{"1", "0"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/ping", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != want {
			t.Errorf("request %d X-RateLimit-Remaining = %q, want %q", i, got, want)
		}
		if got := rr.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("X-RateLimit-Limit = %q", got)
		}
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/ping", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", rr.Code)
	}
}

func TestRecoveryAndRequestID(t *testing.T) {
	r := newEngine(RequestID(), Logger(), Recovery())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/panic", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("panic status = %d, want 500", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header is missing")
	}

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(CORSMiddleware())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/ping", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Access-Control-Allow-Origin header is missing")
	}
}
