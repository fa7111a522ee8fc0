package renderer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/focusgate/internal/api/intent"
	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
	"github.com/GriffinCanCode/focusgate/internal/domain/surface"
	"github.com/GriffinCanCode/focusgate/internal/shared/id"
)

// Defaults offered by the reference surface.
const (
	IntentionDuration = 15 * time.Minute
	ActivityName      = "walk"
	ActivityDuration  = 5 * time.Minute
	intentTimeout     = 5 * time.Second
)

// Steps are the intervention screens in order.
var Steps = []string{"breathe", "reflect", "choose"}

// Channel is the connection to the authority.
type Channel interface {
	Hello(surfaceID string) error
	Heartbeat(app string) error
	Intent(ctx context.Context, name string, req intent.Request) error
	Commands() <-chan authority.Command
}

type commandMsg struct{ cmd authority.Command }

type closedMsg struct{}

type heartbeatMsg struct{}

type intentDoneMsg struct {
	name string
	app  string
	err  error
}

// Model is the root Bubble Tea model.
type Model struct {
	ch        Channel
	logger    *zap.Logger
	keys      KeyMap
	heartbeat time.Duration
	now       func() time.Time

	surface  *surface.Surface
	step     int
	finished int

	spinner   spinner.Model
	connected bool
	status    string
	lastErr   string
	width     int
}

// New creates the root model.
func New(ch Channel, heartbeat time.Duration, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle
	return Model{
		ch:        ch,
		logger:    logger,
		keys:      DefaultKeyMap(),
		heartbeat: heartbeat,
		now:       time.Now,
		surface:   surface.New(id.NewSurfaceID().String()),
		spinner:   sp,
		connected: true,
	}
}

// Surface returns the surface currently hosted.
func (m Model) Surface() *surface.Surface { return m.surface }

// Init introduces the surface and starts listening.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.hello(), m.waitCommand(), m.tick(), m.spinner.Tick)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case commandMsg:
		m.apply(msg.cmd)
		return m, m.waitCommand()

	case closedMsg:
		m.connected = false
		m.status = "disconnected from authority"
		return m, nil

	case heartbeatMsg:
		if app, ok := m.guarded(); ok && m.connected {
			if err := m.ch.Heartbeat(app); err != nil {
				m.logger.Warn("Heartbeat failed", zap.String("app", app), zap.Error(err))
			}
		}
		return m, m.tick()

	case intentDoneMsg:
		return m.intentDone(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(cmd authority.Command) {
	prev, _ := m.surface.Latest()
	outcome := m.surface.Apply(cmd)
	m.logger.Debug("Command applied",
		zap.String("surface", m.surface.ID()),
		zap.String("type", string(cmd.Type)),
		zap.String("app", cmd.AppID),
		zap.Uint64("seq", cmd.Seq),
		zap.Int("outcome", int(outcome)))

	if cmd.Type == authority.CommandLaunch && outcome != surface.Ignored {
		if prev.AppID != cmd.AppID || prev.Reason != cmd.Reason {
			m.step = 0
		}
	}

	if m.surface.ShouldFinish() {
		m.logger.Info("Surface finished", zap.String("surface", m.surface.ID()))
		m.finished++
		m.replaceSurface()
	}
}

// replaceSurface swaps in a fresh PENDING surface, keeping the last quota
// and the user foreground.
func (m *Model) replaceSurface() {
	remaining, ok := m.surface.Remaining()
	foreground := m.surface.Foreground()
	m.surface = surface.New(id.NewSurfaceID().String())
	if ok {
		m.surface.Apply(authority.Command{Type: authority.CommandQuotaUpdated, Remaining: &remaining})
	}
	m.surface.SetForeground(foreground)
	m.step = 0
	m.lastErr = ""
}

// guarded returns the app of a session that needs heartbeats.
func (m Model) guarded() (string, bool) {
	s := m.surface.Session()
	switch s.Kind {
	case surface.KindQuickTask, surface.KindPostChoice, surface.KindIntervention:
		return s.AppID, true
	default:
		return "", false
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Exit) {
		return m, tea.Quit
	}

	latest, ok := m.surface.Latest()
	if !ok || m.surface.State() != surface.ShowSession {
		return m, nil
	}
	app := latest.AppID
	kind := surface.KindOf(latest.Reason)

	switch {
	case kind == surface.KindQuickTask && key.Matches(msg, m.keys.Accept):
		return m, m.send(intent.Accept, intent.Request{AppID: app})
	case kind == surface.KindQuickTask && key.Matches(msg, m.keys.Decline):
		return m, m.send(intent.Decline, intent.Request{AppID: app})

	case kind == surface.KindPostChoice && key.Matches(msg, m.keys.Continue):
		return m, m.send(intent.PostContinue, intent.Request{AppID: app})
	case kind == surface.KindPostChoice && key.Matches(msg, m.keys.QuitApp):
		return m, m.send(intent.PostQuit, intent.Request{AppID: app})

	case kind == surface.KindIntervention && key.Matches(msg, m.keys.NextStep):
		if m.step+1 >= len(Steps) {
			return m, nil
		}
		m.step++
		return m, m.send(intent.InterventionStep, intent.Request{AppID: app, Step: Steps[m.step]})
	case kind == surface.KindIntervention && key.Matches(msg, m.keys.Intention):
		return m, m.send(intent.Intention, intent.Request{AppID: app, DurationMs: IntentionDuration.Milliseconds()})
	case kind == surface.KindIntervention && key.Matches(msg, m.keys.StartActivity):
		return m, m.send(intent.StartActivity, intent.Request{AppID: app, Name: ActivityName, DurationMs: ActivityDuration.Milliseconds()})
	case kind == surface.KindIntervention && key.Matches(msg, m.keys.EndActivity):
		return m, m.send(intent.EndActivity, intent.Request{AppID: app, Completed: true})
	}
	return m, nil
}

func (m Model) intentDone(msg intentDoneMsg) Model {
	if msg.err != nil {
		m.lastErr = fmt.Sprintf("%s: %v", msg.name, msg.err)
		m.logger.Warn("Intent failed", zap.String("intent", msg.name), zap.String("app", msg.app), zap.Error(msg.err))
		return m
	}
	m.lastErr = ""
	m.status = msg.name + " sent"

	latest, ok := m.surface.Latest()
	if !ok || latest.AppID != msg.app {
		return m
	}
	switch msg.name {
	case intent.StartActivity:
		m.surface.StartActivity(surface.Activity{Name: ActivityName, EndsAt: m.now().Add(ActivityDuration)})
	case intent.EndActivity:
		m.surface.EndActivity()
	}
	return m
}

func (m Model) send(name string, req intent.Request) tea.Cmd {
	ch := m.ch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		return intentDoneMsg{name: name, app: req.AppID, err: ch.Intent(ctx, name, req)}
	}
}

func (m Model) hello() tea.Cmd {
	ch, surfaceID, logger := m.ch, m.surface.ID(), m.logger
	return func() tea.Msg {
		if err := ch.Hello(surfaceID); err != nil {
			logger.Error("Hello failed", zap.Error(err))
			return closedMsg{}
		}
		return nil
	}
}

func (m Model) waitCommand() tea.Cmd {
	commands := m.ch.Commands()
	return func() tea.Msg {
		cmd, ok := <-commands
		if !ok {
			return closedMsg{}
		}
		return commandMsg{cmd: cmd}
	}
}

func (m Model) tick() tea.Cmd {
	if m.heartbeat <= 0 {
		return nil
	}
	return tea.Tick(m.heartbeat, func(time.Time) tea.Msg { return heartbeatMsg{} })
}

// View renders the current session.
func (m Model) View() string {
	var b strings.Builder

	session := m.surface.Session()
	switch {
	case m.surface.State() == surface.Pending:
		b.WriteString(m.spinner.View() + " " + dimStyle.Render("Waiting for a session"))
	case !session.Visible:
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s running for %s (app in background)", session.Kind, session.AppID)))
	default:
		b.WriteString(m.renderSession(session))
	}

	b.WriteString("\n\n")
	footer := []string{"surface " + m.surface.ID()}
	if remaining, ok := m.surface.Remaining(); ok {
		footer = append(footer, fmt.Sprintf("quick tasks left: %d", remaining))
	}
	if !m.connected {
		footer = append(footer, errorStyle.Render("DISCONNECTED"))
	} else if m.status != "" {
		footer = append(footer, m.status)
	}
	b.WriteString(dimStyle.Render(strings.Join(footer, " · ")))
	if m.lastErr != "" {
		b.WriteString("\n" + errorStyle.Render(m.lastErr))
	}
	return b.String()
}

func (m Model) renderSession(s surface.Session) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(kindColor(s.Kind.String()))

	var body, help string
	switch s.Kind {
	case surface.KindQuickTask:
		body = "Use a quick task for this app?"
		help = m.help(m.keys.Accept, m.keys.Decline)
	case surface.KindQuickTaskActive:
		body = "Quick task running."
		help = m.help(m.keys.Exit)
	case surface.KindPostChoice:
		body = "Your quick task is over. Keep going or close the app?"
		help = m.help(m.keys.Continue, m.keys.QuitApp)
	case surface.KindIntervention:
		if s.Activity != nil {
			body = fmt.Sprintf("Activity: %s", s.Activity.Name)
			if !s.Activity.EndsAt.IsZero() {
				body += fmt.Sprintf(" (until %s)", s.Activity.EndsAt.Format("15:04"))
			}
			help = m.help(m.keys.EndActivity)
		} else {
			body = fmt.Sprintf("Step %d/%d: %s", m.step+1, len(Steps), Steps[m.step])
			help = m.help(m.keys.NextStep, m.keys.Intention, m.keys.StartActivity)
		}
	}

	card := title.Render(s.Kind.String()) + "  " + titleStyle.Render(s.AppID) + "\n\n" + body + "\n\n" + dimStyle.Render(help)
	return cardStyle.BorderForeground(kindColor(s.Kind.String())).Render(card)
}

func (m Model) help(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}
