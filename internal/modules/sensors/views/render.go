package views

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"io/fs"

	"wotkit-dashboard/internal/modules/sensors/types"
)

var dashboardTmpl *template.Template

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	dashboardTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// chartData is the client-side payload for the chart views.
type chartData struct {
	Line      LineChart  `json:"line"`
	Polar     PolarChart `json:"polar"`
	Trendline Trendline  `json:"trendline"`
	Map       MapView    `json:"map"`
}

type DashboardData struct {
	Selection  *types.Selection
	Status     StatusView
	Table      Table
	Map        MapView
	Sensors    []types.SensorSummary
	History    []types.HistoryEntry
	ChartsJSON template.JS
}

// NewDashboardData flattens a store snapshot into the page view model.
func NewDashboardData(snap Snapshot, history []types.HistoryEntry) (*DashboardData, error) {
	data := &DashboardData{
		Selection: snap.Selection,
		Status:    snap.Status,
		History:   history,
	}
	var charts chartData
	for kind, inst := range snap.Views {
		switch v := inst.Data.(type) {
		case Table:
			data.Table = v
		case MapView:
			data.Map = v
			charts.Map = v
		case SensorList:
			data.Sensors = v.Sensors
		case LineChart:
			charts.Line = v
		case PolarChart:
			charts.Polar = v
		case Trendline:
			charts.Trendline = v
		default:
			return nil, errors.New("unexpected data for view " + string(kind))
		}
	}
	raw, err := json.Marshal(charts)
	if err != nil {
		return nil, err
	}
	data.ChartsJSON = template.JS(raw)
	return data, nil
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderViewsPartial executes only the views partial into w.
// Use for HTMX fragment refresh.
func RenderViewsPartial(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/views.html", data)
}
