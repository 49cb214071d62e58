package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/internal/platform/auth"
	"github.com/healthgraph/radar/pkg/apperr"
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
	g := api.Group("/dashboard")
	g.GET("/metrics", h.Metrics)
	g.GET("/alerts", h.Alerts)
	g.GET("/systems-status", h.SystemsStatus)
	g.GET("/quick-actions", h.QuickActions)
	g.GET("/heatmap-data", h.Heatmap)
	g.GET("/trends", h.Trends)
	g.GET("/observations", h.ListObservations)
	g.POST("/observations", h.CreateObservation, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Metrics(c echo.Context) error {
	m, err := h.svc.Metrics(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, m)
}

func (h *Handler) Alerts(c echo.Context) error {
	alerts, err := h.svc.Alerts(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, alerts)
}

func (h *Handler) SystemsStatus(c echo.Context) error {
	systems, err := h.svc.SystemsStatus(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, systems)
}

func (h *Handler) QuickActions(c echo.Context) error {
	actions, err := h.svc.QuickActions(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, actions)
}

func (h *Handler) Heatmap(c echo.Context) error {
	return response.OK(c, http.StatusOK, h.svc.Heatmap())
}

func (h *Handler) Trends(c echo.Context) error {
	return response.OK(c, http.StatusOK, h.svc.Trends())
}

func (h *Handler) ListObservations(c echo.Context) error {
	p, err := pagination.FromContext(c)
	if err != nil {
		return err
	}
	f := ObservationFilter{MetricName: c.QueryParam("metric_name"), Department: c.QueryParam("department")}
	items, meta, err := h.svc.Observations(c.Request().Context(), f, p)
	if err != nil {
		return err
	}
	return response.Page(c, http.StatusOK, items, meta)
}

func (h *Handler) CreateObservation(c echo.Context) error {
	var o Observation
	if err := c.Bind(&o); err != nil {
		return apperr.Validation("invalid request body")
	}
	o.ID = 0
	if err := h.svc.RecordObservation(c.Request().Context(), &o); err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "metric observation recorded", o)
}
