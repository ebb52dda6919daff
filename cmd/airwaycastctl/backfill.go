package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/airwaycast/airwaycast/internal/app"
	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/worker"
)

var backfillFlags struct {
	from string
	to   string
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Persist live environmental data for every user location",
	Long:  "Fetches daily weather and air quality for each distinct profile location between --from and --to and upserts it into environment_days.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		from, to, err := backfillRange(backfillFlags.from, backfillFlags.to, calendar.Today())
		if err != nil {
			return err
		}

		services, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer services.Close()

		job := worker.NewPrecomputeJob(worker.PrecomputeJobConfig{
			Logger:     log,
			Runner:     services.Orchestrator,
			Profiles:   services.Users,
			Backfiller: services.Backfiller,
			Live:       services.Live,
			Fallback:   cfg.Pipeline.DefaultLocation(),
		})
		res, err := job.BackfillRange(ctx, from, to)
		if err != nil {
			return err
		}

		formatBackfill(cmd.OutOrStdout(), from, to, res)
		return nil
	},
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillFlags.from, "from", "", "first date, YYYY-MM-DD (default 7 days ago)")
	f.StringVar(&backfillFlags.to, "to", "", "last date, YYYY-MM-DD (default today)")
	rootCmd.AddCommand(backfillCmd)
}

// backfillRange parses the flag values, defaulting to the week ending today.
func backfillRange(from, to string, today time.Time) (time.Time, time.Time, error) {
	end := today
	if to != "" {
		t, err := calendar.Parse(to)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := end.AddDate(0, 0, -7)
	if from != "" {
		t, err := calendar.Parse(from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", calendar.Format(end), calendar.Format(start))
	}
	return start, end, nil
}

func formatBackfill(out io.Writer, from, to time.Time, res *environment.BackfillResult) {
	_, _ = fmt.Fprintf(out, "backfilled %s..%s: %d locations, %d days stored, %d failed in %s\n",
		calendar.Format(from),
		calendar.Format(to),
		res.Locations,
		res.Stored,
		res.Failed,
		res.Duration.Round(time.Millisecond),
	)
}
