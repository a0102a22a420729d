package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/engine"
	"github.com/dm/memwatch/internal/model"
)

type viewMode int

const (
	viewDashboard viewMode = iota
	viewAnalytics
)

// ManualSnapshotLabel labels snapshots taken from the dashboard.
const ManualSnapshotLabel = "manual"

// App is the root Bubble Tea model for memwatch.
type App struct {
	sampler         *engine.Sampler
	analyzer        *engine.Analyzer
	cfg             config.Config
	refreshInterval time.Duration

	// Fetch state
	fetching bool // true while a fetchCmd goroutine is in-flight
	state    *StateMsg

	// Source health
	consecutiveFails int
	lastError        error
	lastUpdated      time.Time
	lastSnapshot     *model.Snapshot

	// Layout
	width, height int

	// UI state
	showHelp        bool
	mode            viewMode
	analyticsScroll int
}

// NewApp creates a dashboard over a sampler. The sampler is expected to be
// running; the App only reads its state.
func NewApp(s *engine.Sampler, refresh time.Duration) *App {
	cfg := s.Config()
	if refresh <= 0 {
		refresh = cfg.SampleInterval()
	}
	return &App{
		sampler:         s,
		analyzer:        s.Analyzer(),
		cfg:             cfg,
		refreshInterval: refresh,
		fetching:        true, // Init() always issues an immediate fetchCmd
	}
}

// Init implements tea.Model. Starts the first fetch immediately on launch.
func (app *App) Init() tea.Cmd {
	return fetchCmd(app.sampler, app.cfg)
}

// Update implements tea.Model, the single state-mutation entry point.
func (app *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		app.width = msg.Width
		app.height = msg.Height

	case StateMsg:
		app.fetching = false
		app.state = &msg
		app.consecutiveFails = 0
		app.lastError = nil
		if msg.HasSample {
			app.lastUpdated = msg.Latest.Timestamp
		}
		app.analyticsScroll = min(app.analyticsScroll, analyticsMaxOffset(app))
		return app, tickCmd(app.refreshInterval)

	case FetchErrorMsg:
		app.fetching = false
		app.consecutiveFails++
		app.lastError = msg.Err
		return app, tea.Tick(backoffDuration(app.consecutiveFails), func(t time.Time) tea.Msg {
			return TickMsg(t)
		})

	case SnapshotTakenMsg:
		if msg.Snapshot == nil {
			app.lastError = errors.New("snapshot failed")
			return app, nil
		}
		app.lastSnapshot = msg.Snapshot
		return app, app.refresh()

	case TickMsg:
		return app, app.refresh()

	case tea.KeyMsg:
		return app, app.handleKey(msg)
	}

	return app, nil
}

func (app *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Refresh):
		return app.refresh()
	case key.Matches(msg, keys.Snapshot):
		return snapshotCmd(app.sampler)
	case key.Matches(msg, keys.Analytics):
		if app.mode == viewAnalytics {
			app.mode = viewDashboard
		} else {
			app.mode = viewAnalytics
			app.analyticsScroll = 0
		}
	case key.Matches(msg, keys.Escape):
		app.mode = viewDashboard
	case key.Matches(msg, keys.Help):
		app.showHelp = !app.showHelp
	case key.Matches(msg, keys.Up):
		if app.mode == viewAnalytics && app.analyticsScroll > 0 {
			app.analyticsScroll--
		}
	case key.Matches(msg, keys.Down):
		if app.mode == viewAnalytics {
			app.analyticsScroll = min(app.analyticsScroll+1, analyticsMaxOffset(app))
		}
	}
	return nil
}

// refresh starts a fetch unless one is already in flight.
func (app *App) refresh() tea.Cmd {
	if app.fetching {
		return nil
	}
	app.fetching = true
	return fetchCmd(app.sampler, app.cfg)
}

// View implements tea.Model. Renders the full TUI.
func (app *App) View() string {
	var parts []string

	if h := renderHeader(app); h != "" {
		parts = append(parts, h)
	}
	if app.mode == viewAnalytics {
		parts = append(parts, renderAnalytics(app))
	} else {
		if o := renderOverview(app); o != "" {
			parts = append(parts, o)
		}
		if m := renderMetricsRow(app); m != "" {
			parts = append(parts, m)
		}
	}
	parts = append(parts, renderFooter(app))

	return strings.Join(parts, "\n")
}

// tickCmd schedules the next refresh after duration d.
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchCmd reads the sampler and analyzer state into a StateMsg. Before the
// first sample lands it probes the source so an unreadable source surfaces
// as a FetchErrorMsg instead of an endless "collecting" screen.
func fetchCmd(s *engine.Sampler, cfg config.Config) tea.Cmd {
	return func() tea.Msg {
		latest, ok := s.Latest()
		if !ok {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if _, err := s.Sample(ctx); err != nil {
				return FetchErrorMsg{Err: err}
			}
		}

		a := s.Analyzer()
		msg := StateMsg{
			HasSample:   ok,
			Latest:      latest,
			History:     s.History(),
			Snapshots:   a.Len(),
			SnapshotCap: a.Capacity(),
			Trend:       a.AnalyzeTrends(cfg.TrendWindow()),
			FetchedAt:   time.Now(),
		}
		if ok {
			msg.Alerts = engine.EvaluateThresholds(latest, cfg.Thresholds)
		}
		msg.Leak, msg.LeakErr = s.AnalyzeLeaks()
		if report, err := a.GenerateDetailedReport(); err == nil {
			msg.Recommendations = report.Recommendations
			msg.NextActions = report.NextActions
		}
		return msg
	}
}

// snapshotCmd records a manual snapshot off the UI goroutine.
func snapshotCmd(s *engine.Sampler) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return SnapshotTakenMsg{Snapshot: s.TakeSnapshot(ctx, ManualSnapshotLabel)}
	}
}

// backoffDuration returns min(2^fails * time.Second, 60*time.Second).
// At fails=1: 2s, fails=2: 4s, fails=3: 8s, ..., fails>=6: 60s.
func backoffDuration(fails int) time.Duration {
	const maxBackoff = 60 * time.Second
	if fails <= 0 {
		return time.Second
	}
	if fails >= 6 {
		return maxBackoff
	}
	return time.Duration(1<<fails) * time.Second
}

// renderedHeight returns the number of terminal rows s occupies.
func renderedHeight(s string) int {
	if s == "" {
		return 0
	}
	return lipgloss.Height(s)
}

// sanitize strips escape sequences and control characters from labels that
// originate outside the process so they cannot corrupt the terminal.
// CSI and OSC sequences are removed whole; C0, C1 and DEL are dropped.
func sanitize(s string) string {
	var out strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\x1b' {
			if r >= 0x20 && r != 0x7f && (r < 0x80 || r > 0x9f) {
				out.WriteRune(r)
			}
			continue
		}
		if i+1 >= len(runes) {
			break
		}
		i++
		switch runes[i] {
		case '[':
			// CSI: parameters until a final byte in 0x40-0x7E.
			for i+1 < len(runes) {
				i++
				if runes[i] >= 0x40 && runes[i] <= 0x7e {
					break
				}
			}
		case ']':
			// OSC: terminated by BEL or ST (ESC \).
			for i+1 < len(runes) {
				i++
				if runes[i] == 0x07 {
					break
				}
				if runes[i] == '\x1b' && i+1 < len(runes) && runes[i+1] == '\\' {
					i++
					break
				}
			}
		}
	}
	return out.String()
}
