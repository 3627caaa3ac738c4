package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/search"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	priceStyle   = cellStyle.Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func printResult(res *search.Result) {
	if jsonOutput() {
		printJSON(res)
		return
	}

	if len(res.Results) > 0 {
		fmt.Println(itineraryTable(res.Results))
	} else {
		fmt.Println(mutedStyle.Render("No results match the constraints."))
	}
	if res.Cheapest != nil {
		fmt.Println("Cheapest option ignoring constraints:")
		fmt.Println(itineraryTable([]model.Itinerary{*res.Cheapest}))
	}

	for _, it := range res.Results {
		if it.IsSkiplagged() {
			fmt.Println(warningStyle.Render("! " + it.Warning()))
		}
	}
	if len(res.Stale) > 0 {
		fmt.Println(warningStyle.Render(fmt.Sprintf("%d result set(s) came from an expired cache entry:", len(res.Stale))))
		for _, q := range res.Stale {
			fmt.Println(mutedStyle.Render("  " + q.String()))
		}
	}
	if len(res.Failed) > 0 {
		fmt.Println(errorStyle.Render(fmt.Sprintf("%d of %d queries could not be priced:", len(res.Failed), res.Queries)))
		for _, q := range res.Failed {
			fmt.Println(mutedStyle.Render("  " + q.String()))
		}
	}
}

func itineraryTable(itins []model.Itinerary) string {
	rows := make([][]string, 0, len(itins))
	for i, it := range itins {
		ret := "-"
		if it.HasReturn() {
			ret = strings.Join(it.ReturnPath(), " > ")
		}
		stops := strconv.Itoa(it.StopsOutbound())
		if rs, ok := it.StopsReturn(); ok {
			stops += "/" + strconv.Itoa(rs)
		}
		price := "$" + it.TotalPrice.String()
		if it.Stale {
			price += "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			price,
			string(it.BookingKind),
			strings.Join(it.OutboundPath(), " > "),
			ret,
			stops,
			it.Departure().Format("Jan 02 15:04"),
			strings.Join(uniq(it.Carriers()), ","),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers("#", "Price", "Type", "Outbound", "Return", "Stops", "Departs", "Airlines").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return priceStyle
			case col == 2 && itins[row].IsSkiplagged():
				return cellStyle.Foreground(colorWarning)
			}
			return cellStyle
		})
	return t.String()
}

func printPlan(queries []model.SearchQuery) {
	if jsonOutput() {
		printJSON(map[string]any{"queries": len(queries), "plan": queries})
		return
	}
	for _, q := range queries {
		fmt.Println(q.String())
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%d queries", len(queries))))
}

func simpleTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func warnf(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warningStyle.Render(fmt.Sprintf(format, args...)))
}

func uniq(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
