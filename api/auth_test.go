package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthDisabledWhenTokenEmpty(t *testing.T) {
	c := qt.New(t)
	h := bearerAuthMiddleware("")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
}

func TestBearerAuthRejectsMissingHeader(t *testing.T) {
	c := qt.New(t)
	h := bearerAuthMiddleware("T")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/remix", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	c.Assert(rec.Code, qt.Equals, http.StatusUnauthorized)
}

func TestBearerAuthAcceptsMatchingToken(t *testing.T) {
	c := qt.New(t)
	h := bearerAuthMiddleware("T")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/remix", nil)
	req.Header.Set("Authorization", "Bearer T")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
}

func TestBearerAuthRejectsWrongToken(t *testing.T) {
	c := qt.New(t)
	h := bearerAuthMiddleware("T")(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/remix", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	c.Assert(rec.Code, qt.Equals, http.StatusUnauthorized)
}
