// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 BarCoin Systems

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/barcoin/sentimo/pkg/coinwire"
	"github.com/barcoin/sentimo/pkg/counter"
	"github.com/barcoin/sentimo/pkg/link"
	"github.com/barcoin/sentimo/pkg/session"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive counting dashboard",
	Long: `Full-screen dashboard showing the live tally, session state and link
health.

Keys:
  s  start session        x  stop session (save)
  p  pause                z  reset tally
  r  resume               e  emergency stop
  q  quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// Styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	totalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))

	connColors = map[link.ConnectionState]lipgloss.Style{
		link.StateConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		link.StateConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		link.StateDisconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		link.StateErrored:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
)

// Messages
type snapshotMsg counter.Snapshot
type feedClosedMsg struct{}
type commandDoneMsg struct {
	cmd  counter.Command
	sess session.Session
	err  error
}

type tuiModel struct {
	ctr      *counter.Counter
	connInfo string
	snaps    <-chan counter.Snapshot
	cancel   func()

	table    table.Model
	snap     counter.Snapshot
	lastNote string
	lastErr  bool
	quitting bool
}

func newTUIModel(ctr *counter.Counter, connInfo string) tuiModel {
	snaps, cancel := ctr.Subscribe()

	columns := []table.Column{
		{Title: "Coin", Width: 12},
		{Title: "Value", Width: 8},
		{Title: "Count", Width: 8},
		{Title: "Subtotal", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(len(coinwire.Denominations)+1),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Cell
	t.SetStyles(styles)

	return tuiModel{
		ctr:      ctr,
		connInfo: connInfo,
		snaps:    snaps,
		cancel:   cancel,
		table:    t,
		snap:     ctr.Snapshot(),
	}
}

func (m tuiModel) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m tuiModel) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snaps
		if !ok {
			return feedClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m tuiModel) issue(cmd counter.Command) tea.Cmd {
	ctr := m.ctr
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sess, err := ctr.Issue(ctx, cmd)
		return commandDoneMsg{cmd: cmd, sess: sess, err: err}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		case "s":
			return m, m.issue(counter.CmdStart)
		case "p":
			return m, m.issue(counter.CmdPause)
		case "r":
			return m, m.issue(counter.CmdResume)
		case "z":
			return m, m.issue(counter.CmdReset)
		case "x":
			return m, m.issue(counter.CmdStop)
		case "e":
			return m, m.issue(counter.CmdEmergencyStop)
		}

	case snapshotMsg:
		m.snap = counter.Snapshot(msg)
		m.refreshTable()
		return m, m.waitForSnapshot()

	case feedClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case commandDoneMsg:
		if msg.err != nil {
			m.lastNote = msg.err.Error()
			m.lastErr = true
		} else {
			m.lastNote = msg.cmd.String() + " ok"
			m.lastErr = false
			if msg.cmd == counter.CmdStop || msg.cmd == counter.CmdEmergencyStop {
				m.lastNote = describeSession(msg.sess)
			}
		}
		return m, nil
	}

	return m, nil
}

func (m *tuiModel) refreshTable() {
	rows := make([]table.Row, 0, len(coinwire.Denominations))
	for _, denom := range coinwire.Denominations {
		count := m.snap.Session.Tally.Counts[denom]
		subtotal := int64(denom) * int64(count)
		rows = append(rows, table.Row{
			denom.Name(),
			denom.String(),
			fmt.Sprintf("%d", count),
			"₱" + coinwire.FormatCentavos(subtotal),
		})
	}
	m.table.SetRows(rows)
}

func (m tuiModel) View() string {
	if m.quitting {
		return ""
	}

	connStyle, ok := connColors[m.snap.Connection]
	if !ok {
		connStyle = statusStyle
	}

	header := titleStyle.Render("Sentimo - BAR-COIN session counter")
	linkLine := fmt.Sprintf("%s  link: %s", m.connInfo, connStyle.Render(m.snap.ConnectionName))
	if m.snap.LinkError != "" {
		linkLine += "  " + errStyle.Render(m.snap.LinkError)
	}

	sessLine := "session: " + statusStyle.Render(m.snap.State.String())
	if m.snap.State != session.StateNoSession {
		sessLine += fmt.Sprintf("  id=%s  rate=%.1f coins/min", m.snap.Session.ID, m.snap.CoinsPerMinute)
	}

	totals := totalStyle.Render(fmt.Sprintf("coins: %d   total: %s",
		m.snap.Session.Tally.Coins, m.snap.Session.Tally.Pesos()))

	metrics := helpStyle.Render(fmt.Sprintf(
		"dropped=%d ignored=%d syntax_err=%d semantic_err=%d",
		m.snap.Metrics.DroppedInactive, m.snap.Metrics.IgnoredFrames,
		m.snap.Metrics.SyntaxErrors, m.snap.Metrics.SemanticErrors))

	note := ""
	if m.lastNote != "" {
		if m.lastErr {
			note = errStyle.Render(m.lastNote)
		} else {
			note = helpStyle.Render(m.lastNote)
		}
	}

	help := helpStyle.Render("s start · p pause · r resume · z reset · x stop · e emergency · q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		linkLine,
		sessLine,
		"",
		m.table.View(),
		"",
		totals,
		metrics,
		note,
		help,
	) + "\n"
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctr, db, connInfo, err := newCounter(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- ctr.Run(ctx) }()

	model := newTUIModel(ctr, connInfo)
	model.refreshTable()
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return err
	}

	cancel()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
