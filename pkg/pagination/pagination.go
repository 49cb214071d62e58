package pagination

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/healthgraph/radar/pkg/apperr"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params holds page-based pagination parameters extracted from a request.
type Params struct {
	Page    int
	PerPage int
}

// FromContext extracts page and per_page from the query string, using
// DefaultPerPage when per_page is absent.
func FromContext(c echo.Context) (Params, error) {
	return FromContextWithDefault(c, DefaultPerPage)
}

// FromContextWithDefault is FromContext with an endpoint-specific default
// page size. Malformed or non-positive values are rejected; sizes above
// MaxPerPage are clamped.
func FromContextWithDefault(c echo.Context, defaultPerPage int) (Params, error) {
	page, err := parsePositive(c.QueryParam("page"), 1, "page")
	if err != nil {
		return Params{}, err
	}
	perPage, err := parsePositive(c.QueryParam("per_page"), defaultPerPage, "per_page")
	if err != nil {
		return Params{}, err
	}
	return New(page, perPage), nil
}

// New builds Params, clamping perPage to MaxPerPage.
func New(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

func parsePositive(raw string, def int, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", name)
	}
	if n < 1 {
		return 0, apperr.Validation("%s must be at least 1", name)
	}
	return n, nil
}

// Limit is the SQL LIMIT for the page.
func (p Params) Limit() int { return p.PerPage }

// Offset is the SQL OFFSET for the page.
func (p Params) Offset() int { return (p.Page - 1) * p.PerPage }

// Meta is the pagination block returned with every listing.
type Meta struct {
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewMeta computes page metadata for a result set of total items.
func NewMeta(p Params, total int) *Meta {
	pages := 0
	if total > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return &Meta{
		Page:    p.Page,
		Pages:   pages,
		PerPage: p.PerPage,
		Total:   total,
		HasNext: p.Page < pages,
		HasPrev: p.Page > 1,
	}
}

// Slice returns the page of items from an in-memory result set.
func Slice[T any](items []T, p Params) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
