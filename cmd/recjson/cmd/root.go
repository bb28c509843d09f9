package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xdg-go/recjson"
	"github.com/xdg-go/recjson/internal/config"
	"github.com/xdg-go/recjson/internal/logging"
	"github.com/xdg-go/recjson/store"
)

var (
	cfgFile string
	cfg     = config.DefaultConfig()
	logger  = logging.NoopLogger()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recjson",
	Short: "recjson - typed JSON for graph records",
	Long: `recjson reads and writes records as JSON that keeps exact value types,
record identities and links between records, and stores them in an
embedded database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded := config.DefaultConfig()
		if cfgFile != "" {
			var err error
			if loaded, err = config.LoadConfig(cfgFile); err != nil {
				return err
			}
		}

		flags := cmd.Flags()
		if flags.Changed("data-dir") {
			loaded.DataDir, _ = flags.GetString("data-dir")
		}
		if flags.Changed("log-level") {
			loaded.Logging.Level, _ = flags.GetString("log-level")
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		l, err := loaded.Logger(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringP("data-dir", "d", cfg.DataDir, "Data directory for the store")
	rootCmd.PersistentFlags().String("log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
}

// openDB opens the configured database, creating the data directory first.
func openDB() (*store.DB, error) {
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger.Logger
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := store.Open(cfg.DBPath(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return db, nil
}

// newDecoder reads all of r.  An input holding no document yields a nil
// decoder and no error.
func newDecoder(r io.Reader, opts config.Decode) (*recjson.Decoder, error) {
	d, err := recjson.NewDecoder(r)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.MaxDepth(opts.MaxDepth)
	d.Lenient(opts.Lenient)
	d.ExtJSON(opts.ExtJSON)
	return d, nil
}

// eachRecord decodes every record of r and hands it to fn.
func eachRecord(r io.Reader, opts config.Decode, uow recjson.UnitOfWork, fn func(rec *recjson.Record) error) error {
	d, err := newDecoder(r, opts)
	if err != nil || d == nil {
		return err
	}
	if uow != nil {
		d.Bind(uow)
	}
	for {
		rec := recjson.NewRecord("")
		err := d.Decode(rec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// openInput opens the named file, or returns stdin for "" and "-".
func openInput(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// formatOptions returns the --format flag of cmd, falling back to the
// configured format.
func formatOptions(cmd *cobra.Command) recjson.FormatOptions {
	if cmd.Flags().Changed("format") {
		s, _ := cmd.Flags().GetString("format")
		return recjson.ParseFormat(s)
	}
	return recjson.ParseFormat(cfg.Format)
}

// decodeOptions applies the --lenient flag of cmd, if it has one, over the
// configured decode settings.
func decodeOptions(cmd *cobra.Command) config.Decode {
	opts := cfg.Decode
	if f := cmd.Flags().Lookup("lenient"); f != nil && f.Changed {
		opts.Lenient, _ = cmd.Flags().GetBool("lenient")
	}
	return opts
}
