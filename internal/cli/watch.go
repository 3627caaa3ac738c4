package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/rcliao/flightfinder/internal/compare"
	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/search"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch ORIGINS DEST DEPART [RETURN]",
		Short: "Re-run a search on a schedule and report price drops",
		Long: "Run the search immediately and then on every tick of --schedule until interrupted.\n" +
			"Price history is recorded on every run, so `flightfinder history` shows the trend.",
		Example: "  flightfinder watch SFO,OAK NRT 2026-11-02 --schedule '@every 6h' --alert-below 650",
		Args:    cobra.RangeArgs(3, 4),
		Run:     runWatch,
	}

	addSearchFlags(cmd)
	cmd.Flags().String("schedule", "@every 6h", "Cron schedule (standard five fields or @every/@daily)")
	cmd.Flags().String("alert-below", "", "Print an alert when the cheapest fare is below this price")

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	req, constraints, err := parseSearch(cmd, args)
	if err != nil {
		exitErr("parse search", err)
	}
	schedule, _ := cmd.Flags().GetString("schedule")
	var threshold model.Money
	if v, _ := cmd.Flags().GetString("alert-below"); v != "" {
		if threshold, err = model.ParseMoney(v); err != nil {
			exitErr("parse --alert-below", err)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	b, err := openBackends(cmd.Context(), s)
	if err != nil {
		exitErr("open backends", err)
	}
	defer b.Close()

	eng, err := newEngine(s, b, nil)
	if err != nil {
		exitErr("configure search", err)
	}

	w := &watcher{engine: eng, req: req, constraints: constraints, threshold: threshold, logger: slog.Default()}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	ctx := cmd.Context()
	if _, err := c.AddFunc(schedule, func() { w.run(ctx) }); err != nil {
		exitErr("parse --schedule", err)
	}

	recordSearch(cmd, s, req, constraints)
	w.run(ctx)

	c.Start()
	slog.Info("watching", "schedule", schedule, "destination", req.Destination)
	<-ctx.Done()
	<-c.Stop().Done()
}

type watcher struct {
	engine      *search.Engine
	req         search.Request
	constraints compare.Constraints
	threshold   model.Money
	logger      *slog.Logger

	best model.Money
}

// run performs one search. Cron's SkipIfStillRunning keeps runs from overlapping.
func (w *watcher) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := w.engine.Search(ctx, w.req, w.constraints)
	if err != nil && !errors.Is(err, compare.ErrNoResults) {
		w.logger.Warn("watch run failed", "err", err)
		if res == nil {
			return
		}
	}
	if len(res.Failed) > 0 {
		w.logger.Warn("queries failed", "failed", len(res.Failed), "queries", res.Queries)
	}
	if len(res.Results) == 0 {
		w.logger.Info("no results", "queries", res.Queries)
		return
	}

	cheapest := res.Results[0]
	w.report(time.Now(), cheapest)
}

func (w *watcher) report(at time.Time, cheapest model.Itinerary) {
	price := cheapest.TotalPrice
	line := fmt.Sprintf("%s  cheapest %s %s via %s (%s)",
		at.Format("2006-01-02 15:04"), price, cheapest.Currency, strings.Join(cheapest.OutboundPath(), "-"), cheapest.BookingKind)

	switch {
	case w.threshold > 0 && price < w.threshold:
		fmt.Println(priceStyle.Foreground(colorWarning).Render("ALERT " + line))
	case w.best > 0 && price < w.best:
		fmt.Println(line + mutedStyle.Render(fmt.Sprintf("  down from %s", w.best)))
	default:
		fmt.Println(line)
	}
	if w.best == 0 || price < w.best {
		w.best = price
	}
}
