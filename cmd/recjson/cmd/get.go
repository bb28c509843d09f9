package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/xdg-go/recjson"
	"github.com/xdg-go/recjson/store"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <rid>",
	Short: "Print a stored record",
	Long: `Load a record by identity and write it as JSON.  Linked records are
written inline up to the fetchDepth of the format options.

Example:
  recjson get '#1:0' --format rid,class,fetchDepth:1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		return getRecord(db, args[0], cmd.OutOrStdout(), formatOptions(cmd))
	},
}

func getRecord(db *store.DB, id string, w io.Writer, format recjson.FormatOptions) error {
	rid, err := recjson.ParseRID(id)
	if err != nil {
		return err
	}
	rec, err := db.Load(rid)
	if err != nil {
		return err
	}
	logger.WithRID(rid).Debug("record loaded", "class", rec.Class(), "version", rec.Version())
	enc := recjson.NewEncoder(w)
	enc.Format(format)
	enc.Lookup(db)
	return enc.Encode(rec)
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().String("format", "", "Format options, e.g. rid,class,fetchDepth:1")
}
