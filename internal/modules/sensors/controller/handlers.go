package controller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"wotkit-dashboard/internal/modules/sensors/dashboard"
	"wotkit-dashboard/internal/modules/sensors/repository"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/views"
	"wotkit-dashboard/internal/utils"
)

// Dashboard starts selections and searches; service.Service in production.
type Dashboard interface {
	Select(ctx context.Context, sensorID string) (types.Selection, error)
	Search(ctx context.Context, query string) (uint64, error)
}

type ViewSource interface {
	Snapshot() views.Snapshot
	Get(kind views.Kind) (views.Instance, bool)
}

type SensorsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type sensorsControllerImpl struct {
	dashboard  Dashboard
	store      ViewSource
	repository repository.SelectionRepository
}

func NewSensorsController(d Dashboard, store ViewSource, repo repository.SelectionRepository) SensorsController {
	return &sensorsControllerImpl{dashboard: d, store: store, repository: repo}
}

func (c *sensorsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/views", c.handleViewsPartial)
	mux.HandleFunc("POST /search", c.handleSearchForm)
	mux.HandleFunc("POST /select/{id}", c.handleSelectForm)

	mux.HandleFunc("GET /api/v1/views", c.handleViews)
	mux.HandleFunc("GET /api/v1/views/{kind}", c.handleView)
	mux.HandleFunc("POST /api/v1/search", c.handleSearch)
	mux.HandleFunc("POST /api/v1/sensors/{id}/select", c.handleSelect)
	mux.HandleFunc("GET /api/v1/selections", c.handleSelections)
}

func (c *sensorsControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := c.pageData()
	if err != nil {
		slog.Error("dashboard: build page data failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	utils.WriteHTML(w, buf.Bytes())
}

func (c *sensorsControllerImpl) handleViewsPartial(w http.ResponseWriter, r *http.Request) {
	c.writeViewsPartial(w)
}

// handleSearchForm fires a search from the dashboard form. HTMX requests get
// the refreshed partial, plain form posts are redirected back to the page.
func (c *sensorsControllerImpl) handleSearchForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid form")
		return
	}
	if _, err := c.dashboard.Search(r.Context(), r.PostForm.Get("text")); err != nil {
		writeDashboardError(w, err)
		return
	}
	c.afterFormAction(w, r)
}

func (c *sensorsControllerImpl) handleSelectForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.selectSensor(w, r); !ok {
		return
	}
	c.afterFormAction(w, r)
}

func (c *sensorsControllerImpl) handleViews(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.store.Snapshot())
}

func (c *sensorsControllerImpl) handleView(w http.ResponseWriter, r *http.Request) {
	kind, ok := views.ParseKind(r.PathValue("kind"))
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "unknown view "+r.PathValue("kind"))
		return
	}
	inst, ok := c.store.Get(kind)
	if !ok {
		utils.WriteError(w, http.StatusNotFound, "view "+string(kind)+" has no data")
		return
	}
	utils.WriteJSON(w, http.StatusOK, inst)
}

func (c *sensorsControllerImpl) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchRequest(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	seq, err := c.dashboard.Search(r.Context(), query)
	if err != nil {
		writeDashboardError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, map[string]any{"seq": seq, "text": query})
}

func (c *sensorsControllerImpl) handleSelect(w http.ResponseWriter, r *http.Request) {
	sel, ok := c.selectSensor(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusAccepted, sel)
}

func (c *sensorsControllerImpl) handleSelections(w http.ResponseWriter, r *http.Request) {
	limit, err := parseHistoryQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	history, err := c.repository.GetRecentSelections(limit)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, history)
}

func (c *sensorsControllerImpl) selectSensor(w http.ResponseWriter, r *http.Request) (types.Selection, bool) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing sensor id")
		return types.Selection{}, false
	}
	sel, err := c.dashboard.Select(r.Context(), id)
	if err != nil {
		writeDashboardError(w, err)
		return types.Selection{}, false
	}
	return sel, true
}

func (c *sensorsControllerImpl) afterFormAction(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		c.writeViewsPartial(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *sensorsControllerImpl) writeViewsPartial(w http.ResponseWriter) {
	data, err := views.NewDashboardData(c.store.Snapshot(), nil)
	if err != nil {
		slog.Error("views partial: build data failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	var buf bytes.Buffer
	if err := views.RenderViewsPartial(&buf, data); err != nil {
		slog.Error("views partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	utils.WriteHTML(w, buf.Bytes())
}

func (c *sensorsControllerImpl) pageData() (*views.DashboardData, error) {
	history, err := c.repository.GetRecentSelections(dashboardHistoryLimit)
	if err != nil {
		return nil, err
	}
	return views.NewDashboardData(c.store.Snapshot(), history)
}

func writeDashboardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrStopped):
		utils.WriteError(w, http.StatusServiceUnavailable, "dashboard is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.WriteError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		slog.Error("dashboard action failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
