package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"

	"wotkit-dashboard/internal/modules/sensors/dashboard"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/viewdata"
)

const actionTimeout = 5 * time.Second

// Actions is what the model asks of the dashboard; *dashboard.Controller
// satisfies it.
type Actions interface {
	Select(ctx context.Context, sensorID string) (types.Selection, error)
	Search(ctx context.Context, query string) (uint64, error)
}

type focus int

const (
	focusSearch focus = iota
	focusList
)

type sensorItem struct{ types.SensorSummary }

func (i sensorItem) Title() string {
	if i.LongName != "" {
		return i.LongName
	}
	return i.Name
}

func (i sensorItem) Description() string { return fmt.Sprintf("#%s %s", i.ID, i.Name) }
func (i sensorItem) FilterValue() string { return i.Name }

type Model struct {
	actions Actions

	width, height int
	focus         focus

	input textinput.Model
	list  list.Model
	help  help.Model

	selection *types.Selection
	rows      []viewdata.TableRow
	series    []float64
	buckets   []viewdata.Bucket
	point     viewdata.MapPoint
	trend     []viewdata.Point
	status    dashboard.Status
	actionErr error
}

func NewModel(actions Actions) *Model {
	const (
		defaultWidth  = 100
		defaultHeight = 30
	)

	ti := textinput.New()
	ti.Placeholder = "search sensors"
	ti.Prompt = "/ "
	ti.Focus()

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = styles.NewStyle().
		Border(styles.NormalBorder(), false, false, false, true).
		BorderForeground(borderColor).
		Foreground(accentColor).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle

	l := list.New(nil, d, defaultWidth/3, defaultHeight-6)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.Styles.NoItems = l.Styles.NoItems.Padding(0, 1)

	return &Model{
		actions: actions,
		width:   defaultWidth,
		height:  defaultHeight,
		input:   ti,
		list:    l,
		help:    help.New(),
	}
}

func (m *Model) Init() tea.Cmd { return textinput.Blink }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.leftWidth(), max(msg.Height-6, 3))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case selectionMsg:
		sel := types.Selection(msg)
		m.selection = &sel
	case tableMsg:
		m.rows = msg
	case lineMsg:
		m.series = msg
	case polarMsg:
		m.buckets = msg
	case mapMsg:
		m.point = viewdata.MapPoint(msg)
	case trendlineMsg:
		m.trend = msg
	case sensorsMsg:
		items := make([]list.Item, len(msg))
		for i, s := range msg {
			items[i] = sensorItem{s}
		}
		return m, m.list.SetItems(items)
	case statusMsg:
		m.status = dashboard.Status(msg)
	case actionErrMsg:
		m.actionErr = msg.err
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Focus):
		m.toggleFocus()
		return m, nil
	case key.Matches(msg, keys.Submit):
		m.actionErr = nil
		if m.focus == focusSearch {
			query := m.input.Value()
			m.input.SetValue("")
			return m, m.search(query)
		}
		if item, ok := m.list.SelectedItem().(sensorItem); ok {
			return m, m.selectSensor(string(item.ID))
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusSearch {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusSearch {
		m.focus = focusList
		m.input.Blur()
		return
	}
	m.focus = focusSearch
	m.input.Focus()
}

func (m *Model) search(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if _, err := m.actions.Search(ctx, query); err != nil {
			return actionErrMsg{err}
		}
		return nil
	}
}

func (m *Model) selectSensor(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if _, err := m.actions.Select(ctx, id); err != nil {
			return actionErrMsg{err}
		}
		return nil
	}
}

func (m *Model) leftWidth() int { return max(m.width/3, 20) }

func (m *Model) rightWidth() int { return max(m.width-m.leftWidth()-4, 20) }

func (m *Model) View() string {
	left := styles.JoinVertical(styles.Left, m.input.View(), m.list.View())
	left = styles.NewStyle().Width(m.leftWidth()).Render(left)

	header := "No sensor selected"
	if m.selection != nil {
		header = accentFg.Render("Sensor " + m.selection.SensorID)
	}
	location := fmt.Sprintf("%s at %s, %s", m.point.Label, viewdata.FormatValue(m.point.Lat), viewdata.FormatValue(m.point.Lng))
	plotW := max(m.rightWidth()-2, 10)
	right := styles.JoinVertical(styles.Left,
		header,
		location,
		ReadingsTable(m.rows),
		LinePlot(m.series, plotW, 8),
		fmt.Sprintf("Trend: %d data points", len(m.trend)),
		TrendPlot(m.trend, plotW, 6),
		Histogram(m.buckets),
	)
	right = paneStyle.Width(m.rightWidth()).Render(right)

	view := styles.JoinHorizontal(styles.Top, left, right)
	return styles.JoinVertical(styles.Left, view, m.statusLine(), m.help.View(keys))
}

func (m *Model) statusLine() string {
	switch {
	case m.actionErr != nil:
		return errorFg.Render("ERROR: " + m.actionErr.Error())
	case m.status.Err != nil:
		return errorFg.Render("ERROR: " + m.status.Err.Error())
	case m.status.Loading():
		return fmt.Sprintf("loading (%d pending)", m.status.Pending)
	default:
		return ""
	}
}
