package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCronAuthAcceptsMatchingToken(t *testing.T) {
	called := false
	handler := CronAuth("s3cret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/cron/expire-payments", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected handler to run")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCronAuthRejectsBadOrMissingToken(t *testing.T) {
	for name, header := range map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"basic":   "Basic s3cret",
	} {
		t.Run(name, func(t *testing.T) {
			handler := CronAuth("s3cret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))

			req := httptest.NewRequest(http.MethodPost, "/cron/process-payouts", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestCronAuthFailsClosedWithoutSecret(t *testing.T) {
	handler := CronAuth("", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/cron/expire-payments", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
