package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xdg-go/recjson"
	"github.com/xdg-go/recjson/internal/config"
	"github.com/xdg-go/recjson/store"
)

var putClass string

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put [file]",
	Short: "Store the records of a document",
	Long: `Parse every record of a document in one transaction, commit it and print
the identity of each record.  Records linked by snapshots are stored too.
Reads stdin when no file is given.

Example:
  recjson put --class Person ada.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		in, err := openInput(cmd, name)
		if err != nil {
			return err
		}
		defer in.Close()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rids, err := putDocuments(db, in, putClass, cfg.Decode)
		if err != nil {
			return err
		}
		for _, rid := range rids {
			fmt.Fprintln(cmd.OutOrStdout(), rid)
		}
		return nil
	},
}

// putDocuments saves the records of r in a single transaction.  Records
// without a class get class, if it is not empty.
func putDocuments(db *store.DB, r io.Reader, class string, dopts config.Decode) ([]recjson.RID, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var saved []*recjson.Record
	err = eachRecord(r, dopts, tx, func(rec *recjson.Record) error {
		if class != "" && rec.Class() == "" {
			rec.SetClass(class)
		}
		saved = append(saved, rec)
		return tx.Save(rec)
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rids := make([]recjson.RID, len(saved))
	for i, rec := range saved {
		rids[i] = rec.Identity()
	}
	return rids, nil
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().StringVar(&putClass, "class", "", "Class for records that do not name one")
}
