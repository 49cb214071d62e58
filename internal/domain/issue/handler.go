package issue

import (
	"net/http"

	"github.com/labstack/echo/v4"

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
	g := api.Group("/issues")
	g.GET("", h.ListIssues)
	g.POST("", h.CreateIssue)
	g.GET("/metrics", h.Metrics)
	g.GET("/wizards", h.Wizards)
	g.GET("/history", h.History)
	g.GET("/:id", h.GetIssue)
	g.POST("/:id/start", h.StartIssue)
	g.POST("/:id/resolve", h.ResolveIssue)
}

// filterFromQuery reads the listing filters. status defaults to open when
// absent; "all" or an empty value lists every status.
func filterFromQuery(c echo.Context) Filter {
	q := c.QueryParams()
	f := Filter{
		Status:   StatusOpen,
		Priority: Priority(q.Get("priority")),
		Type:     Type(q.Get("type")),
	}
	if f.Type == "" {
		f.Type = Type(q.Get("issue_type"))
	}
	if q.Has("status") {
		f.Status = Status(q.Get("status"))
		if f.Status == "all" {
			f.Status = ""
		}
	}
	return f
}

func (h *Handler) ListIssues(c echo.Context) error {
	p, err := pagination.FromContext(c)
	if err != nil {
		return err
	}
	views, meta, err := h.svc.List(c.Request().Context(), filterFromQuery(c), p)
	if err != nil {
		return err
	}
	return response.Page(c, http.StatusOK, views, meta)
}

func (h *Handler) CreateIssue(c echo.Context) error {
	var iss Issue
	if err := c.Bind(&iss); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &iss); err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "issue recorded", iss)
}

func (h *Handler) GetIssue(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	details, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, details)
}

func (h *Handler) StartIssue(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	iss, err := h.svc.Start(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "issue in progress", iss)
}

type resolveRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

type resolveResponse struct {
	Issue                 *Issue `json:"issue"`
	ResolutionTimeMinutes int    `json:"resolution_time_minutes"`
}

func (h *Handler) ResolveIssue(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	iss, err := h.svc.Resolve(c.Request().Context(), id, req.ResolutionNotes)
	if err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "issue resolved", resolveResponse{
		Issue:                 iss,
		ResolutionTimeMinutes: *iss.ResolutionTime,
	})
}

func (h *Handler) Metrics(c echo.Context) error {
	m, err := h.svc.Metrics(c.Request().Context())
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, m)
}

func (h *Handler) Wizards(c echo.Context) error {
	return response.OK(c, http.StatusOK, h.svc.Wizards())
}

func (h *Handler) History(c echo.Context) error {
	p, err := pagination.FromContextWithDefault(c, HistoryPerPage)
	if err != nil {
		return err
	}
	items, meta, err := h.svc.History(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return response.Page(c, http.StatusOK, items, meta)
}
