package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/pkg/apperr"
)

func runWithRole(t *testing.T, id *Identity, roles ...string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/integrations/systems", nil)
	if id != nil {
		req = req.WithContext(WithIdentity(req.Context(), id))
	}
	c := e.NewContext(req, httptest.NewRecorder())
	h := RequireRole(roles...)(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	return h(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
		want apperr.Kind
	}{
		{"admin passes", &Identity{UserID: 1, Role: "admin"}, ""},
		{"matching role", &Identity{UserID: 2, Role: "analyst"}, ""},
		{"other role", &Identity{UserID: 3, Role: "user"}, apperr.KindForbidden},
		{"no identity", nil, apperr.KindAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runWithRole(t, tt.id, "analyst")
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperr.Is(err, tt.want) {
				t.Errorf("expected %s, got %v", tt.want, err)
			}
		})
	}
}
