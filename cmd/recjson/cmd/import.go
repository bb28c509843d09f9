package cmd

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xdg-go/recjson/internal/config"
	"github.com/xdg-go/recjson/internal/logging"
	"github.com/xdg-go/recjson/store"
)

var importJobs int

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import files...",
	Short: "Store many documents concurrently",
	Long: `Import each file in its own transaction.  Files are parsed concurrently;
commits are serialized by the store.  The first failure stops files that have
not started yet.  Links between files are not resolved.

Example:
  recjson import --jobs 8 dump/*.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs := cfg.Import.Jobs
		if cmd.Flags().Changed("jobs") {
			jobs = importJobs
		}
		if jobs < 1 {
			return fmt.Errorf("jobs must be at least 1, got %d", jobs)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := importFiles(cmd.Context(), db, args, jobs, cfg.Decode, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d records from %d files\n", n, len(args))
		return nil
	},
}

// importFiles stores each file in its own transaction, running at most jobs
// files at once.  It returns the number of records committed.
func importFiles(ctx context.Context, db *store.DB, files []string, jobs int, dopts config.Decode, log *logging.Logger) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var total atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, name := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := importFile(db, name, dopts)
			log.LogImport(ctx, name, n, err)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			total.Add(int64(n))
			return nil
		})
	}
	err := g.Wait()
	return total.Load(), err
}

func importFile(db *store.DB, name string, dopts config.Decode) (int, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	rids, err := putDocuments(db, f, "", dopts)
	return len(rids), err
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().IntVarP(&importJobs, "jobs", "j", 4, "Number of files imported at once")
}
