package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func roleContext(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if roles != nil {
		ctx := context.WithValue(req.Context(), UserRolesKey, roles)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRole_Allowed(t *testing.T) {
	c := roleContext([]string{"nurse"})

	var handlerCalled bool
	handler := func(c echo.Context) error {
		handlerCalled = true
		return c.String(http.StatusOK, "ok")
	}

	mw := RequireRole("physician", "nurse")
	if err := mw(handler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !handlerCalled {
		t.Error("handler was not called")
	}
}

func TestRequireRole_Denied(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
	}{
		{"wrong role", []string{"billing"}},
		{"no roles on context", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := roleContext(tt.roles)

			handler := func(c echo.Context) error {
				t.Error("handler must not run without the required role")
				return c.String(http.StatusOK, "ok")
			}

			mw := RequireRole("physician", "nurse")
			err := mw(handler)(c)

			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %v", err)
			}
			if httpErr.Code != http.StatusForbidden {
				t.Errorf("expected 403, got %d", httpErr.Code)
			}
		})
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := roleContext([]string{"admin"})

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := RequireRole("physician")
	if err := mw(handler)(c); err != nil {
		t.Error("admin should bypass role checks")
	}
}
