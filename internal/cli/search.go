package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/rcliao/flightfinder/internal/compare"
	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/search"
	"github.com/rcliao/flightfinder/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search ORIGINS DEST DEPART [RETURN]",
		Short: "Search flights from one or more origins",
		Long: "Search every origin (comma-separated IATA codes) for the cheapest way to DEST.\n" +
			"With RETURN, round-trip fares are compared against pairs of one-way tickets.\n" +
			"Dates are YYYY-MM-DD.",
		Example: "  flightfinder search IAD,DCA,BWI NBO 2026-12-14 2026-12-28 --skiplagged --flex 2",
		Args:    cobra.RangeArgs(3, 4),
		Run:     runSearch,
	}

	addSearchFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "Print the planned queries without searching")
	cmd.Flags().Bool("metrics", false, "Write executor metrics to stderr when done")

	RootCmd.AddCommand(cmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("skiplagged", false, "Include hidden-city fares through DEST")
	cmd.Flags().Int("flex", 0, "Also search this many days either side of the dates (0-7)")
	cmd.Flags().IntP("top", "n", 10, "Number of results to show")
	cmd.Flags().String("cabin", "", "Cabin: economy, premium, business or first")
	cmd.Flags().String("max-price", "", "Maximum total price, e.g. 1500 or 1499.99")
	cmd.Flags().Int("max-stops", -1, "Maximum outbound connections")
	cmd.Flags().Int("max-return-stops", -1, "Maximum return connections")
	cmd.Flags().StringSlice("exclude-airlines", nil, "Carrier codes to avoid")
	cmd.Flags().StringSlice("airlines", nil, "Only fly these carrier codes")
	cmd.Flags().StringSlice("avoid", nil, "Connection airports to avoid")
	cmd.Flags().Duration("min-layover", 45*time.Minute, "Minimum connection time")
	cmd.Flags().Duration("max-layover", 0, "Maximum connection time (0 for no limit)")
	cmd.Flags().Duration("max-duration", 0, "Maximum travel time per direction (0 for no limit)")
}

func parseSearch(cmd *cobra.Command, args []string) (search.Request, compare.Constraints, error) {
	var req search.Request
	var c compare.Constraints

	for _, o := range strings.Split(args[0], ",") {
		if o = strings.TrimSpace(o); o != "" {
			req.Origins = append(req.Origins, o)
		}
	}
	req.Destination = args[1]

	depart, err := model.ParseDate(args[2])
	if err != nil {
		return req, c, fmt.Errorf("depart date: %w", err)
	}
	req.DepartDate = depart
	if len(args) == 4 {
		ret, err := model.ParseDate(args[3])
		if err != nil {
			return req, c, fmt.Errorf("return date: %w", err)
		}
		req.ReturnDate = &ret
	}

	f := cmd.Flags()
	req.IncludeSkiplagged, _ = f.GetBool("skiplagged")
	req.FlexDays, _ = f.GetInt("flex")
	req.Cabin, _ = f.GetString("cabin")

	c.TopN, _ = f.GetInt("top")
	if c.TopN < 1 {
		return req, c, fmt.Errorf("--top must be at least 1")
	}
	if s, _ := f.GetString("max-price"); s != "" {
		if c.MaxPrice, err = model.ParseMoney(s); err != nil {
			return req, c, fmt.Errorf("--max-price: %w", err)
		}
	}
	if n, _ := f.GetInt("max-stops"); n >= 0 {
		c.MaxStops = &n
	}
	if n, _ := f.GetInt("max-return-stops"); n >= 0 {
		c.MaxReturnStops = &n
	}
	c.ExcludeAirlines, _ = f.GetStringSlice("exclude-airlines")
	c.IncludeAirlines, _ = f.GetStringSlice("airlines")
	c.AvoidConnections, _ = f.GetStringSlice("avoid")
	c.MinLayover, _ = f.GetDuration("min-layover")
	c.MaxLayover, _ = f.GetDuration("max-layover")
	c.MaxDuration, _ = f.GetDuration("max-duration")

	return req, c, req.Validate()
}

func runSearch(cmd *cobra.Command, args []string) {
	req, constraints, err := parseSearch(cmd, args)
	if err != nil {
		exitErr("parse search", err)
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showMetrics, _ := cmd.Flags().GetBool("metrics")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if dryRun {
		queries, err := search.NewBuilder(skiplaggedFinder(s)).Build(cmd.Context(), req)
		if err != nil {
			exitErr("plan", err)
		}
		printPlan(queries)
		return
	}

	b, err := openBackends(cmd.Context(), s)
	if err != nil {
		exitErr("open backends", err)
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	eng, err := newEngine(s, b, reg)
	if err != nil {
		exitErr("configure search", err)
	}

	recordSearch(cmd, s, req, constraints)
	res, err := eng.Search(cmd.Context(), req, constraints)
	if err != nil && !errors.Is(err, compare.ErrNoResults) {
		if res == nil {
			exitErr("search", err)
		}
		warnf("warning: search interrupted: %v", err)
	}
	printResult(res)

	if showMetrics {
		writeMetrics(reg)
	}
}

func recordSearch(cmd *cobra.Command, s *store.SQLiteStore, req search.Request, c compare.Constraints) {
	params, _ := json.Marshal(map[string]any{
		"skiplagged":  req.IncludeSkiplagged,
		"flex_days":   req.FlexDays,
		"cabin":       req.Cabin,
		"top":         c.TopN,
		"max_price":   c.MaxPrice,
		"exclude":     c.ExcludeAirlines,
		"min_layover": c.MinLayover.String(),
	})
	rec := store.SearchRecord{
		Origins:     req.Origins,
		Destination: strings.ToUpper(req.Destination),
		DepartDate:  req.DepartDate.String(),
		ParamsJSON:  string(params),
	}
	if req.ReturnDate != nil {
		rec.ReturnDate = req.ReturnDate.String()
	}
	if _, err := s.RecordSearch(cmd.Context(), rec); err != nil {
		warnf("warning: record search: %v", err)
	}
}

func writeMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		warnf("warning: gather metrics: %v", err)
		return
	}
	for _, mf := range families {
		expfmt.MetricFamilyToText(os.Stderr, mf)
	}
}
