package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/pkg/apperr"
	"github.com/healthgraph/radar/pkg/httpparam"
	"github.com/healthgraph/radar/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/analytics")
	g.GET("/trends", h.Trends)
	g.GET("/departments", h.Departments)
	g.GET("/roi", h.ROI)
	g.GET("/reports", h.Reports)
	g.POST("/reports/:id/generate", h.GenerateReport)
	g.GET("/kpis", h.KPIs)
	g.GET("/charts/data-quality", h.QualityChart)
}

func (h *Handler) Trends(c echo.Context) error {
	days, err := httpparam.Int(c, "days", DefaultTrendDays)
	if err != nil {
		return err
	}
	t, err := h.svc.Trends(days)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, t)
}

func (h *Handler) Departments(c echo.Context) error {
	return response.OK(c, http.StatusOK, h.svc.Departments())
}

func (h *Handler) ROI(c echo.Context) error {
	return response.OK(c, http.StatusOK, h.svc.ROI())
}

func (h *Handler) Reports(c echo.Context) error {
	return response.OK(c, http.StatusOK, h.svc.Reports())
}

func (h *Handler) GenerateReport(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	out, err := h.svc.GenerateReport(c.Param("id"), req)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "report generated", out)
}

func (h *Handler) KPIs(c echo.Context) error {
	return response.OK(c, http.StatusOK, h.svc.KPIs())
}

func (h *Handler) QualityChart(c echo.Context) error {
	chart, err := h.svc.QualityChart(c.QueryParam("type"))
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, chart)
}
