package apiapp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authsvc "github.com/MSK-101/Juicy-meets-web-sub002/internal/services/auth"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"abc", "", false},
		{"", "", false},
		{"Basic abc", "", false},
	}

	for _, tc := range cases {
		token, ok := extractBearerToken(tc.header)
		if ok != tc.ok || token != tc.token {
			t.Errorf("header %q: got (%q, %v), want (%q, %v)", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	jwt := authsvc.NewJWTManager("test-secret", time.Minute)
	token, _, err := jwt.GenerateAccessToken(101)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var gotIdentity authsvc.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = authsvc.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(jwt, nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("valid token must pass, got %d", rec.Code)
	}
	if gotIdentity.ParticipantID != 101 {
		t.Fatalf("identity must be set, got %+v", gotIdentity)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token must be rejected, got %d", rec.Code)
	}
}
