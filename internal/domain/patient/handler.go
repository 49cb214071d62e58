package patient

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
	g := api.Group("/patients")
	g.GET("", h.ListPatients)
	g.POST("", h.CreatePatient)
	g.GET("/search", h.SearchPatients)
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id", h.UpdatePatient)
	g.GET("/:id/timeline", h.Timeline)
	g.GET("/:id/recommendations", h.Recommendations)
	g.GET("/:id/records", h.ListRecords)
	g.POST("/:id/records", h.CreateRecord)
}

func (h *Handler) ListPatients(c echo.Context) error {
	p, err := pagination.FromContext(c)
	if err != nil {
		return err
	}
	items, meta, err := h.svc.List(c.Request().Context(), c.QueryParam("search"), p)
	if err != nil {
		return err
	}
	return response.Page(c, http.StatusOK, items, meta)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return apperr.Validation("invalid request body")
	}
	p.ID = 0
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "patient created", p)
}

type searchResult struct {
	Results    []*Summary `json:"results"`
	TotalFound int        `json:"total_found"`
}

func (h *Handler) SearchPatients(c echo.Context) error {
	f := SearchFilter{Query: c.QueryParam("q"), Department: c.QueryParam("department")}
	hasIssues, set, err := httpparam.Bool(c, "has_issues")
	if err != nil {
		return err
	}
	if set {
		f.HasIssues = &hasIssues
	}
	items, err := h.svc.Search(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, searchResult{Results: items, TotalFound: len(items)})
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.Details(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, d)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return apperr.Validation("invalid request body")
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return err
	}
	return response.Message(c, http.StatusOK, "patient updated", p)
}

func (h *Handler) Timeline(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	tl, err := h.svc.Timeline(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, tl)
}

func (h *Handler) Recommendations(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	recs, err := h.svc.Recommendations(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, map[string]interface{}{
		"patient_id":      id,
		"recommendations": recs,
	})
}

func (h *Handler) ListRecords(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	records, err := h.svc.Records(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, http.StatusOK, records)
}

func (h *Handler) CreateRecord(c echo.Context) error {
	id, err := httpparam.ID(c, "id")
	if err != nil {
		return err
	}
	var m MedicalRecord
	if err := c.Bind(&m); err != nil {
		return apperr.Validation("invalid request body")
	}
	m.ID = 0
	m.PatientID = id
	if err := h.svc.AddRecord(c.Request().Context(), &m); err != nil {
		return err
	}
	return response.Message(c, http.StatusCreated, "medical record added", m)
}
