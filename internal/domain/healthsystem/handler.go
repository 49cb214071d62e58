package healthsystem

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/httpparam"
	"github.com/healthgraph/radar/pkg/pagination"
	"github.com/healthgraph/radar/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/integrations")
	g.GET("/systems", h.ListSystems)
	g.POST("/systems", h.CreateSystem, auth.RequireRole(auth.RoleAdmin))
	g.GET("/systems/:id", h.GetSystem)
	g.POST("/systems/:id/test", h.TestSystem)
	g.POST("/systems/:id/sync", h.SyncSystem)
	g.GET("/overview", h.Overview)
	g.GET("/logs", h.Logs)
	g.GET("/mapping", h.Mappings)
}

func (h *Handler) ListSystems(c echo.Context) error {
	systems, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, systems)
}

func (h *Handler) CreateSystem(c echo.Context) error {
	var sys HealthSystem
	if err := c.Bind(&sys); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &sys); err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "health system registered", sys)
}

func (h *Handler) GetSystem(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	details, err := h.svc.Details(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, details)
}

func (h *Handler) TestSystem(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.TestConnection(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, out.Message, out)
}

func (h *Handler) SyncSystem(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.ForceSync(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, out.Message, out)
}

func (h *Handler) Overview(c echo.Context) error {
	ov, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, ov)
}

func (h *Handler) Logs(c echo.Context) error {
	hours, err := httpparam.Int(c, "hours", defaultLogHours)
	if err != nil {
		return err
	}
	systemID, err := httpparam.Int64(c, "system_id")
	if err != nil {
		return err
	}
	p, err := pagination.FromContextWithDefault(c, LogsPerPage)
	if err != nil {
		return err
	}
	page, meta, err := h.svc.Logs(c.Request().Context(), hours, systemID, p)
	if err != nil {
		return err
	}
	return response.Page(c, http.StatusOK, page, meta)
}

func (h *Handler) Mappings(c echo.Context) error {
	return response.OK(c, http.StatusOK, map[string]interface{}{
		"synthetic": true,
		"mappings":  h.svc.Mappings(),
	})
}
