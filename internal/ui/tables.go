package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/warpchat/internal/protocol"
)

// RoomsView renders the relay's rooms as a table.
func RoomsView(rooms []protocol.Room, now time.Time) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No rooms")
	}

	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		names := make([]string, 0, len(r.Members))
		for _, m := range r.Members {
			names = append(names, m.DisplayName)
		}
		members := strings.Join(names, ", ")
		if members == "" {
			members = "-"
		}
		rows = append(rows, []string{
			truncate(r.ID, 40),
			r.State,
			truncate(members, 40),
			formatAge(now.Sub(r.CreatedAt)),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Room", "State", "Members", "Age").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// StatsView renders relay counters.
func StatsView(st *protocol.StatsResponse) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.Style().Title.Align = text.AlignCenter
	t.SetTitle("Relay Stats")
	t.AppendHeader(prettytable.Row{"Metric", "Value"})

	t.AppendRows([]prettytable.Row{
		{"Clients", st.Clients},
		{"Queued", st.Queued},
		{"Waiting for messages", st.Waiters},
		{"Matches", st.Matches},
	})
	t.AppendSeparator()

	states := make([]string, 0, len(st.Rooms))
	for state := range st.Rooms {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		t.AppendRow(prettytable.Row{"Rooms " + state, st.Rooms[state]})
	}
	t.AppendSeparator()

	t.AppendRows([]prettytable.Row{
		{"Messages sent", st.Messages.Sent},
		{"Messages delivered", st.Messages.Delivered},
		{"Messages dropped", st.Messages.Dropped},
	})
	t.SetColumnConfigs([]prettytable.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	return t.Render()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// RoomBanner tells the creator of a room how a partner can join it.
func RoomBanner(roomID, serverURL string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room created!\n\n%s Room ID:  %s\n%s Share:    %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(roomID),
		IconPeer, MutedStyle.Render(fmt.Sprintf("warpchat join %s --server %s", roomID, serverURL)),
	)
	return box.Render(content)
}
