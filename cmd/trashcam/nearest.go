package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-trashcam/pkg/features"
	"github.com/teslashibe/go-trashcam/pkg/journal"
)

var nearestCmd = &cobra.Command{
	Use:   "nearest <image>",
	Short: "Find recorded classifications with the closest features",
	Args:  cobra.ExactArgs(1),
	RunE:  runNearest,
}

func init() {
	nearestCmd.Flags().String("database-url", "", "Postgres connection string (or TRASHCAM_DATABASE_URL)")
	nearestCmd.Flags().IntP("limit", "n", 5, "Number of matches")
}

func runNearest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("database-url") {
		cfg.DatabaseURL, _ = cmd.Flags().GetString("database-url")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("a database URL is required")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	ex, err := features.NewExtractor(cfg.FeaturesConfig())
	if err != nil {
		return err
	}
	img := gocv.IMRead(args[0], gocv.IMReadColor)
	set, err := ex.Extract(img)
	img.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ctx := cmd.Context()
	pg, err := journal.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()

	matches, err := pg.Nearest(ctx, set, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "query\t%s\n\n", set)
	fmt.Fprintln(w, "DISTANCE\tLABEL\tTIME\tSOURCE")
	for _, m := range matches {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", m.Distance, m.Label, m.Time.Format("2006-01-02 15:04:05"), m.Source)
	}
	return w.Flush()
}
