package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/airwaycast/airwaycast/internal/app"
	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/pipeline"
)

var predictFlags struct {
	users   []string
	start   string
	days    int
	refresh bool
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Compute risk forecasts for one or more users",
	Long:  "Runs the prediction pipeline and prints one row per user and day. Cached forecasts are reused unless --refresh is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var start time.Time
		if predictFlags.start != "" {
			t, err := calendar.Parse(predictFlags.start)
			if err != nil {
				return err
			}
			start = t
		}

		services, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer services.Close()

		res, err := services.Orchestrator.Run(ctx, pipeline.Request{
			UserIDs:   predictFlags.users,
			Start:     start,
			Days:      predictFlags.days,
			SkipCache: predictFlags.refresh,
		})
		if err != nil {
			return err
		}

		formatResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	f := predictCmd.Flags()
	f.StringSliceVar(&predictFlags.users, "user", nil, "user id (repeatable or comma-separated)")
	f.StringVar(&predictFlags.start, "start", "", "first forecast date, YYYY-MM-DD (default today)")
	f.IntVar(&predictFlags.days, "days", 0, "forecast horizon in days (default from config)")
	f.BoolVar(&predictFlags.refresh, "refresh", false, "recompute even when a cached forecast exists")
	_ = predictCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(predictCmd)
}

func formatResult(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "USER\tDATE\tRISK\tCONFIDENCE\tMODEL")
	_, _ = fmt.Fprintln(w, "----\t----\t----\t----------\t-----")

	for _, r := range res.Records {
		conf := "-"
		if r.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *r.Confidence)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			r.UserID,
			calendar.Format(r.Date),
			r.Risk,
			conf,
			r.Scorer,
		)
	}
	_ = w.Flush()

	source := "computed"
	if res.Cached {
		source = "cache"
	}
	_, _ = fmt.Fprintf(out, "\n%d records from %s\n", len(res.Records), source)
	if len(res.Fallback) > 0 {
		_, _ = fmt.Fprintf(out, "no check-in history: %s\n", strings.Join(res.Fallback, ", "))
	}
	if len(res.Unknown) > 0 {
		_, _ = fmt.Fprintf(out, "unknown users: %s\n", strings.Join(res.Unknown, ", "))
	}
	if res.StoreFailed {
		_, _ = fmt.Fprintln(out, "warning: forecasts were not stored")
	}
}
