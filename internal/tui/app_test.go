package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/memwatch/internal/model"
)

func TestApp_StateMsgUpdatesState(t *testing.T) {
	app := newTestApp(t)
	require.Nil(t, app.state)
	require.True(t, app.fetching)

	msg := fixtureState(fixtureSample(50, 120))
	newModel, cmd := app.Update(msg)
	updated := newModel.(*App)

	require.NotNil(t, updated.state)
	assert.Equal(t, msg.Latest, updated.state.Latest)
	assert.False(t, updated.fetching)
	assert.Equal(t, 0, updated.consecutiveFails)
	assert.Nil(t, updated.lastError)
	assert.Equal(t, msg.Latest.Timestamp, updated.lastUpdated)
	assert.NotNil(t, cmd, "a tick must be scheduled after a successful fetch")
}

func TestApp_StateWithoutSampleKeepsLastUpdated(t *testing.T) {
	app := newTestApp(t)
	app.Update(StateMsg{})
	assert.True(t, app.lastUpdated.IsZero())
}

func TestApp_FetchErrorIncreasesFails(t *testing.T) {
	app := newTestApp(t)
	fetchErr := errors.New("source gone")

	app.Update(FetchErrorMsg{Err: fetchErr})
	assert.Equal(t, 1, app.consecutiveFails)
	assert.Equal(t, fetchErr, app.lastError)
	assert.False(t, app.fetching)

	_, cmd := app.Update(FetchErrorMsg{Err: fetchErr})
	assert.Equal(t, 2, app.consecutiveFails)
	assert.NotNil(t, cmd, "a backoff tick must be scheduled")
}

func TestApp_FetchErrorResetsOnSuccess(t *testing.T) {
	app := newTestApp(t)
	app.Update(FetchErrorMsg{Err: errors.New("boom")})
	app.Update(FetchErrorMsg{Err: errors.New("boom")})
	require.Equal(t, 2, app.consecutiveFails)

	app.Update(fixtureState(fixtureSample(50, 120)))
	assert.Equal(t, 0, app.consecutiveFails)
	assert.Nil(t, app.lastError)
}

func TestApp_WindowSizeStored(t *testing.T) {
	app := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, app.width)
	assert.Equal(t, 40, app.height)
}

func TestApp_QuitKey(t *testing.T) {
	app := newTestApp(t)
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_RefreshKey(t *testing.T) {
	app := newTestApp(t)
	app.fetching = false
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.NotNil(t, cmd)
	assert.True(t, app.fetching)
}

func TestApp_RefreshKeyNoopWhileFetching(t *testing.T) {
	app := newTestApp(t)
	require.True(t, app.fetching)
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Nil(t, cmd)
}

func TestApp_TickNoopWhileFetching(t *testing.T) {
	app := newTestApp(t)
	_, cmd := app.Update(TickMsg(time.Now()))
	assert.Nil(t, cmd)
}

func TestApp_HelpToggle(t *testing.T) {
	app := newTestApp(t)
	assert.False(t, app.showHelp)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, app.showHelp)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.False(t, app.showHelp)
}

func TestApp_AnalyticsToggleAndEscape(t *testing.T) {
	app := newTestApp(t)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	assert.Equal(t, viewAnalytics, app.mode)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	assert.Equal(t, viewDashboard, app.mode)

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, viewDashboard, app.mode)
}

func TestApp_ScrollClampedToContent(t *testing.T) {
	app := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	st := fixtureState(fixtureSample(50, 120))
	st.NextActions = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	app.Update(st)
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})

	maxOffset := analyticsMaxOffset(app)
	require.Positive(t, maxOffset)
	for range maxOffset + 5 {
		app.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, maxOffset, app.analyticsScroll)

	app.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, maxOffset-1, app.analyticsScroll)
}

func TestApp_SnapshotTaken(t *testing.T) {
	app := newTestApp(t)
	app.fetching = false
	snap := &model.Snapshot{ID: 7, Timestamp: time.Now()}
	_, cmd := app.Update(SnapshotTakenMsg{Snapshot: snap})
	assert.Equal(t, snap, app.lastSnapshot)
	assert.NotNil(t, cmd, "a snapshot triggers a refresh")
	assert.Contains(t, stripANSI(renderFooter(app)), "snapshot #7")

	app.Update(SnapshotTakenMsg{})
	assert.Error(t, app.lastError)
}

func TestBackoffDuration(t *testing.T) {
	cases := []struct {
		fails int
		want  time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, backoffDuration(tc.fails), "fails=%d", tc.fails)
	}
}

func TestRenderMiniBar(t *testing.T) {
	assert.Equal(t, "", renderMiniBar(50, 0))
	assert.Equal(t, "░░░░░░░░░░", renderMiniBar(0, 10))
	assert.Equal(t, "█████░░░░░", renderMiniBar(50, 10))
	assert.Equal(t, "██████████", renderMiniBar(100, 10))
	assert.Equal(t, "██████████", renderMiniBar(150, 10))
	assert.Equal(t, "░░░░░░░░░░", renderMiniBar(-5, 10))
}

func TestFetchCmd_ReadsSamplerState(t *testing.T) {
	s := runningSampler(t, 3)
	msg := fetchCmd(s, s.Config())()

	st, ok := msg.(StateMsg)
	require.True(t, ok, "got %T", msg)
	assert.True(t, st.HasSample)
	assert.NotEmpty(t, st.History)
	assert.GreaterOrEqual(t, st.Snapshots, 3)
	assert.Equal(t, s.Config().SnapshotCapacity, st.SnapshotCap)
	assert.NoError(t, st.LeakErr)
	assert.NotEmpty(t, st.NextActions)
}

func TestFetchCmd_SourceErrorBeforeFirstSample(t *testing.T) {
	s := newTestSampler(t, &growingSource{err: errors.New("permission denied")})
	msg := fetchCmd(s, s.Config())()

	fe, ok := msg.(FetchErrorMsg)
	require.True(t, ok, "got %T", msg)
	assert.ErrorContains(t, fe.Err, "permission denied")
}

func TestSnapshotCmd(t *testing.T) {
	s := newTestSampler(t, &growingSource{})
	msg := snapshotCmd(s)().(SnapshotTakenMsg)
	require.NotNil(t, msg.Snapshot)
	assert.Equal(t, ManualSnapshotLabel, msg.Snapshot.Label)
	assert.Equal(t, 1, s.Analyzer().Len())
}

func TestView_DashboardAndAnalytics(t *testing.T) {
	app := newTestApp(t)
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	app.Update(fixtureState(fixtureSample(50, 120)))

	view := stripANSI(app.View())
	assert.Contains(t, view, "Heap Used")
	assert.Contains(t, view, "Memory History")
	assert.Contains(t, view, "? for help")

	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	view = stripANSI(app.View())
	assert.Contains(t, view, "Leak Detection")
	assert.False(t, strings.Contains(view, "Memory History"))
}

func TestRenderOverview_NoState(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, "", renderOverview(app))
}

func TestRenderOverview_WithState(t *testing.T) {
	app := newTestApp(t)
	app.width = 120
	st := fixtureState(fixtureSample(190, 120))
	st.Snapshots = 4
	st.SnapshotCap = 100
	st.Trend = model.TrendAnalysis{Trend: model.TrendIncreasing, ChangePercent: 12.5}
	app.Update(st)

	out := stripANSI(renderOverview(app))
	assert.Contains(t, out, "190.0 MB")
	assert.Contains(t, out, "95.0%")
	assert.Contains(t, out, "4/100")
	assert.Contains(t, out, "Snapshots")
	assert.Contains(t, out, "▲ +12.5%")
}

func TestRenderOverview_NarrowStacksCards(t *testing.T) {
	app := newTestApp(t)
	app.width = 60
	app.Update(fixtureState(fixtureSample(50, 120)))

	out := renderOverview(app)
	assert.Greater(t, strings.Count(stripANSI(out), "\n"), 3, "narrow layout stacks cards in rows")
}

func TestLeakLabel(t *testing.T) {
	st := fixtureState(fixtureSample(50, 120))
	assert.Equal(t, "…", leakLabel(&st))

	st.Leak = model.LeakAnalysis{SampleCount: 10}
	assert.Equal(t, "none", leakLabel(&st))

	st.Leak = model.LeakAnalysis{LeakDetected: true, Severity: model.LeakSeverityMedium, Confidence: 0.4, SampleCount: 10}
	assert.Equal(t, "MEDIUM 40%", leakLabel(&st))
}
