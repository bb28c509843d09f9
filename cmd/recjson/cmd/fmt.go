package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/xdg-go/recjson"
	"github.com/xdg-go/recjson/internal/config"
)

// fmtCmd represents the fmt command
var fmtCmd = &cobra.Command{
	Use:   "fmt [file]",
	Short: "Rewrite documents with the given format options",
	Long: `Parse every record of a document stream and write it back out, one
record per line.  Reads stdin when no file is given.

Example:
  recjson fmt --format rid,class,prettyPrint people.json`,
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

		n, err := formatDocuments(in, cmd.OutOrStdout(), decodeOptions(cmd), formatOptions(cmd))
		logger.Debug("formatted records", "count", n)
		return err
	},
}

func formatDocuments(r io.Reader, w io.Writer, dopts config.Decode, format recjson.FormatOptions) (int, error) {
	enc := recjson.NewEncoder(w)
	enc.Format(format)
	n := 0
	err := eachRecord(r, dopts, nil, func(rec *recjson.Record) error {
		n++
		return enc.Encode(rec)
	})
	return n, err
}

func init() {
	rootCmd.AddCommand(fmtCmd)
	fmtCmd.Flags().String("format", "", "Format options, e.g. rid,class,keepTypes,indent:2")
	fmtCmd.Flags().Bool("lenient", false, "Accept relaxed JSON syntax")
}
