// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/codesage-dev/codesage/internal/suggest"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

// --- lipgloss styles ---

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	codeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// runner runs one suggestion request.
type runner interface {
	Run(ctx context.Context, text string, topN int) (suggest.Outcome, error)
}

type resultsMsg struct {
	query   string
	outcome suggest.Outcome
	elapsed time.Duration
	err     error
}

type lookupModel struct {
	engine  runner
	topN    int
	timeout time.Duration

	input   textinput.Model
	spinner spinner.Model
	busy    bool

	query   string
	outcome suggest.Outcome
	elapsed time.Duration
	err     error
}

func newLookupModel(engine runner, topN int, timeout time.Duration) lookupModel {
	in := textinput.New()
	in.Placeholder = "describe symptoms, e.g. sharp abdominal pain for 3 days"
	in.CharLimit = 512
	in.Width = 60
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return lookupModel{engine: engine, topN: topN, timeout: timeout, input: in, spinner: sp}
}

func (m lookupModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m lookupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				m.err = sageerr.New(sageerr.CodeSuggestInputInvalid, "type some clinical text first")
				return m, nil
			}
			m.busy = true
			m.err = nil
			m.query = query
			return m, tea.Batch(m.spinner.Tick, m.runCmd(query))
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case resultsMsg:
		m.busy = false
		m.query = msg.query
		m.outcome = msg.outcome
		m.elapsed = msg.elapsed
		m.err = msg.err
		m.input.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m lookupModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Codesage lookup  ") + "\n\n")
	b.WriteString(promptStyle.Render("Clinical text") + "\n")
	b.WriteString(m.input.View() + "\n\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " Searching for " + fmt.Sprintf("%q", m.query) + "…\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("  "+m.err.Error()) + "\n")
	case m.query != "":
		b.WriteString(dimStyle.Render(fmt.Sprintf("%q normalized to %q in %s", m.query, m.outcome.Normalized, m.elapsed.Round(time.Millisecond))) + "\n\n")
		if len(m.outcome.Suggestions) == 0 {
			b.WriteString(dimStyle.Render("  no matching codes") + "\n")
		}
		for _, s := range m.outcome.Suggestions {
			b.WriteString(fmt.Sprintf("  %s %s %s\n",
				codeStyle.Render(fmt.Sprintf("%-9s", s.FormattedCode)),
				dimStyle.Render(fmt.Sprintf("%7.3f", s.Score)),
				s.Description))
		}
	}

	b.WriteString("\n" + dimStyle.Render("enter to search  esc to quit"))
	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func (m lookupModel) runCmd(query string) tea.Cmd {
	engine, topN, timeout := m.engine, m.topN, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		out, err := engine.Run(ctx, query, topN)
		return resultsMsg{query: query, outcome: out, elapsed: time.Since(start), err: err}
	}
}

func newLookupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Interactively suggest codes in a terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			topN, _ := cmd.Flags().GetInt("top-n")
			if topN <= 0 {
				topN = cfg.Ranking.DefaultTopN
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			st, err := buildStack(cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			p := tea.NewProgram(newLookupModel(st.engine, topN, timeout),
				tea.WithAltScreen(), tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().IntP("top-n", "n", 0, "number of suggestions (default: ranking.default_top_n)")
	cmd.Flags().Duration("timeout", 30*time.Second, "timeout per search")

	return cmd
}
