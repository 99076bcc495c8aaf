package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pretty "github.com/jedib0t/go-pretty/v6/table"
)

// TrackRow is one local track in the track table.
type TrackRow struct {
	Kind    string
	ID      string
	Enabled bool
}

// TrackTableView renders the local track set.
func TrackTableView(rows []TrackRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("No local tracks")
	}

	var data [][]string
	for _, r := range rows {
		state := "on"
		if !r.Enabled {
			state = "muted"
		}
		data = append(data, []string{r.Kind, truncate(r.ID, 36), state})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Kind", "Track", "State").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		}).
		Render()
}

// CallSummary is printed when a call ends.
type CallSummary struct {
	Room       string
	Duration   time.Duration
	Media      string
	Offers     int
	Answers    int
	Candidates string
	Rejected   int
	Recordings []string
	EndReason  string
}

// CallSummaryView renders s as a go-pretty table.
func CallSummaryView(s CallSummary) string {
	t := pretty.NewWriter()
	t.SetStyle(pretty.StyleRounded)
	t.SetTitle("📊 Call Summary")
	t.AppendHeader(pretty.Row{"Metric", "Value"})
	t.AppendRows([]pretty.Row{
		{"Room", s.Room},
		{"Duration", s.Duration.Round(time.Second).String()},
		{"Media", s.Media},
		{"Offers / Answers", fmt.Sprintf("%d / %d", s.Offers, s.Answers)},
		{"Candidates", s.Candidates},
		{"Rejected messages", s.Rejected},
	})
	if len(s.Recordings) > 0 {
		t.AppendRow(pretty.Row{"Recordings", strings.Join(s.Recordings, "\n")})
	}
	if s.EndReason != "" {
		t.AppendSeparator()
		t.AppendRow(pretty.Row{"Ended", s.EndReason})
	}
	return t.Render()
}

func RenderCallSummary(s CallSummary) {
	fmt.Println(CallSummaryView(s))
}

// ProcessingResult is one recording after transcription and summary.
type ProcessingResult struct {
	File       string
	Transcript string
	Summary    string
	Keywords   []string
}

func ProcessingResultView(r ProcessingResult) string {
	t := pretty.NewWriter()
	t.SetStyle(pretty.StyleRounded)
	t.SetTitle(IconSummary + " " + r.File)
	t.SetColumnConfigs([]pretty.ColumnConfig{{Number: 2, WidthMax: 60}})
	t.AppendRows([]pretty.Row{
		{"Transcript", r.Transcript},
		{"Summary", r.Summary},
	})
	if len(r.Keywords) > 0 {
		t.AppendRow(pretty.Row{"Keywords", strings.Join(r.Keywords, ", ")})
	}
	return t.Render()
}

func RenderProcessingResult(r ProcessingResult) {
	fmt.Println(ProcessingResultView(r))
}

// RoomInfo is the box shown while waiting for the peer.
type RoomInfo struct {
	RoomID    string
	Generated bool
}

func (r RoomInfo) View() string {
	title := IconRoom + " Joining room"
	if r.Generated {
		title = IconSuccess + " Room created"
	}
	content := fmt.Sprintf("%s\n%s Room ID:  %s\n%s",
		TitleStyle.Render(title),
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		MutedStyle.Render("Share it: videocall call "+r.RoomID),
	)
	return RoomBoxStyle.Render(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
