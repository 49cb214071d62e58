package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the credential endpoints. mw typically
// carries the per-IP throttle.
func (h *Handler) RegisterPublicRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/auth", mw...)
	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
}

// RegisterRoutes mounts the endpoints that need an authenticated caller.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/logout", h.Logout)
	g.POST("/refresh", h.Refresh)
	g.GET("/me", h.Me)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	out, err := h.svc.Login(c.Request().Context(), req, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, out)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "user created", u)
}

func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context(), auth.IdentityFromContext(c.Request().Context())); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "logged out", nil)
}

func (h *Handler) Refresh(c echo.Context) error {
	out, err := h.svc.Refresh(c.Request().Context(), auth.IdentityFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, out)
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.svc.Me(c.Request().Context(), auth.IdentityFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, u)
}
