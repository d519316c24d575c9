// Package viewer is a terminal view of a running session.
package viewer

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/tankbot/game"
	"github.com/brensch/tankbot/session"
)

const recentLines = 8

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cellStyles = map[game.Kind]lipgloss.Style{
		game.KindEmpty:    dimStyle,
		game.KindBrick:    lipgloss.NewStyle().Foreground(lipgloss.Color("166")),
		game.KindStone:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		game.KindWater:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		game.KindTank:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		game.KindLifepack: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		game.KindCoinpack: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	}
	ownTankStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
)

// StepMsg carries a folded step into the program.
type StepMsg session.Step

type closedMsg struct{}

type TickMsg time.Time

// Model renders the latest world, the controlled tank and recent frames.
type Model struct {
	updates   <-chan session.Step
	startTime time.Time
	now       time.Time

	world    *game.World
	steps    int
	failures int
	commands int
	recent   []string
	lastErr  string
	closed   bool
}

// New returns a model fed by updates.
func New(updates <-chan session.Step) Model {
	return Model{
		updates:   updates,
		startTime: time.Now(),
		now:       time.Now(),
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates <-chan session.Step) tea.Cmd {
	return func() tea.Msg {
		step, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return StepMsg(step)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	case closedMsg:
		m.closed = true
		return m, nil
	case StepMsg:
		m = m.apply(session.Step(msg))
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m Model) apply(step session.Step) Model {
	m.steps++
	if step.World != nil {
		m.world = step.World
	}
	if step.HasCommand {
		m.commands++
	}

	line := fmt.Sprintf("#%d %s", step.Seq, strings.TrimSpace(step.Frame))
	if step.Frame == "" {
		line = fmt.Sprintf("#%d (opening)", step.Seq)
	}
	if step.HasCommand {
		line += " -> " + step.Command.String()
	}
	if step.Err != nil {
		m.failures++
		m.lastErr = step.Err.Error()
		line = errorStyle.Render(line + " ! " + step.Err.Error())
	}

	m.recent = append([]string{line}, m.recent...)
	if len(m.recent) > recentLines {
		m.recent = m.recent[:recentLines]
	}
	return m
}

func (m Model) View() string {
	left := panelStyle.Render(m.renderGrid())

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("tankbot") + "\n\n")
	if tank, ok := m.controlled(); ok {
		fmt.Fprintf(&sb, "Player:   P%d\n", tank.Player)
		fmt.Fprintf(&sb, "Position: %s facing %s\n", tank.Point, tank.Facing)
		fmt.Fprintf(&sb, "Ahead:    %s\n", m.ahead(tank))
		fmt.Fprintf(&sb, "Health:   %d\n", tank.Health)
		fmt.Fprintf(&sb, "Coins:    %d\n", tank.Coins)
		fmt.Fprintf(&sb, "Points:   %d\n", tank.Points)
	} else {
		sb.WriteString(dimStyle.Render("waiting for join") + "\n")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Steps:    %d\n", m.steps)
	fmt.Fprintf(&sb, "Commands: %d\n", m.commands)
	fmt.Fprintf(&sb, "Failures: %d\n", m.failures)
	if m.lastErr != "" {
		sb.WriteString(errorStyle.Render("Last:     "+m.lastErr) + "\n")
	}
	fmt.Fprintf(&sb, "Uptime:   %s\n", m.now.Sub(m.startTime).Round(time.Second))
	if m.world != nil {
		fmt.Fprintf(&sb, "Tanks:    %d  Lifepacks: %d  Coinpacks: %d\n",
			len(m.world.Tanks), len(m.world.Lifepacks), len(m.world.Coinpacks))
	}
	right := panelStyle.Render(sb.String())

	var out strings.Builder
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	out.WriteString("\n\nRecent frames:\n")
	for _, line := range m.recent {
		out.WriteString(line + "\n")
	}
	if m.closed {
		out.WriteString(dimStyle.Render("\nstream closed") + "\n")
	}
	out.WriteString("\nPress q to quit.\n")
	return out.String()
}

func (m Model) controlled() (game.Tank, bool) {
	if m.world == nil {
		return game.Tank{}, false
	}
	return m.world.ControlledTank()
}

func (m Model) ahead(t game.Tank) string {
	o, ok := m.world.Ahead(t)
	switch {
	case !ok:
		return "edge"
	case o == nil:
		return "empty"
	}
	return fmt.Sprintf("%s %c", o.Kind(), game.Glyph(o))
}

func (m Model) renderGrid() string {
	if m.world == nil {
		return dimStyle.Render("no world yet")
	}
	var sb strings.Builder
	for y := 0; y < game.GridSize; y++ {
		for x := 0; x < game.GridSize; x++ {
			o := m.world.At(game.Pt(x, y))
			glyph := string(game.Glyph(o)) + " "
			style := cellStyles[game.KindEmpty]
			if o != nil {
				style = cellStyles[o.Kind()]
				if t, ok := o.(game.Tank); ok && t.Controlled {
					style = ownTankStyle
				}
			}
			sb.WriteString(style.Render(glyph))
		}
		if y < game.GridSize-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Run shows the view until the user quits or ctx is done.
func Run(ctx context.Context, updates <-chan session.Step) error {
	p := tea.NewProgram(New(updates), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
