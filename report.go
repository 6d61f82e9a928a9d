package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/onnwee/nowplaying/config"
	"github.com/onnwee/nowplaying/history"
)

// addReportCommands registers the offline history reports.
func addReportCommands(root *cobra.Command) {
	var historyFile string
	root.PersistentFlags().StringVar(&historyFile, "history-file", "", "history log to read (default: HISTORY_FILE or "+config.DefaultHistoryFile+")")

	openLog := func() (*history.FileLog, error) {
		if historyFile != "" {
			return history.NewFileLog(historyFile), nil
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return history.NewFileLog(cfg.HistoryFile), nil
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent tracks from the history log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := openLog()
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), log, limit)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries (0 for all)")

	var top int
	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Print the most played artists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := openLog()
			if err != nil {
				return err
			}
			return printTop(cmd.OutOrStdout(), log, top)
		},
	}
	topCmd.Flags().IntVarP(&top, "limit", "n", 10, "number of artists")

	var width int
	var utc bool
	chartCmd := &cobra.Command{
		Use:   "chart",
		Short: "Print listening activity by hour of day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := openLog()
			if err != nil {
				return err
			}
			loc := time.Local
			if utc {
				loc = time.UTC
			}
			return printChart(cmd.OutOrStdout(), log, loc, width)
		},
	}
	chartCmd.Flags().IntVar(&width, "width", 40, "bar width of the busiest hour")
	chartCmd.Flags().BoolVar(&utc, "utc", false, "bucket hours in UTC instead of local time")

	root.AddCommand(historyCmd, topCmd, chartCmd)
}

func printHistory(w io.Writer, log *history.FileLog, limit int) error {
	recs, err := log.Read(limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "history is empty")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintln(w, r.Line())
	}
	return nil
}

func printTop(w io.Writer, log *history.FileLog, n int) error {
	recs, err := log.Read(0)
	if err != nil {
		return err
	}
	top := history.TopArtists(recs, n)
	if len(top) == 0 {
		fmt.Fprintln(w, "history is empty")
		return nil
	}
	for i, a := range top {
		fmt.Fprintf(w, "%3d. %-30s %s\n", i+1, a.Artist, humanize.Comma(int64(a.Plays)))
	}
	fmt.Fprintf(w, "%d tracks logged\n", len(recs))
	return nil
}

func printChart(w io.Writer, log *history.FileLog, loc *time.Location, width int) error {
	recs, err := log.Read(0)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "history is empty")
		return nil
	}
	fmt.Fprint(w, history.RenderChart(history.HourlyActivity(recs, loc), width))
	return nil
}
