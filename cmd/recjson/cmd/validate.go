package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xdg-go/recjson"
	"github.com/xdg-go/recjson/internal/config"
)

var errInvalid = errors.New("invalid documents")

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Check that documents parse",
	Long: `Parse every record of each file and report the first error per file.
Links are checked within each file: an invalid link or a temporary id that no
record of the file defines is an error.  Reads stdin when no file is given.

Example:
  recjson validate a.json b.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"-"}
		}
		out := cmd.OutOrStdout()
		failed := 0
		for _, name := range args {
			n, err := validateFile(cmd, name)
			logger.WithFile(name).Debug("validated", "records", n, "error", err)
			if err != nil {
				failed++
				fmt.Fprintf(out, "%s: %v\n", name, err)
				continue
			}
			fmt.Fprintf(out, "%s: ok (%d records)\n", name, n)
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d files", errInvalid, failed, len(args))
		}
		return nil
	},
}

func validateFile(cmd *cobra.Command, name string) (int, error) {
	in, err := openInput(cmd, name)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return validateDocuments(in, decodeOptions(cmd))
}

// validateDocuments decodes r against a scratch unit of work whose commit
// only checks links.
func validateDocuments(r io.Reader, dopts config.Decode) (int, error) {
	uow := newScratch()
	n := 0
	err := eachRecord(r, dopts, uow, func(rec *recjson.Record) error {
		n++
		uow.Attach(rec)
		return nil
	})
	if err != nil {
		return n, err
	}
	return n, uow.Commit()
}

// scratch is a unit of work that keeps nothing.
type scratch struct {
	res *recjson.Resolver
	n   int64
}

func newScratch() *scratch {
	return &scratch{res: recjson.NewResolver()}
}

func (s *scratch) NewRecord(class string) *recjson.Record { return recjson.NewRecord(class) }

func (s *scratch) Resolver() *recjson.Resolver { return s.res }

func (s *scratch) Attach(rec *recjson.Record) recjson.RID {
	s.res.AssignTemp(rec, &s.n)
	s.res.Register(rec)
	return rec.Identity()
}

func (s *scratch) Commit() error {
	if err := s.res.Err(); err != nil {
		return err
	}
	for _, ref := range s.res.Pending() {
		if rid := ref.Link.RID(); rid.IsTemporary() {
			return &recjson.LinkError{Path: ref.Path, RID: rid, Err: recjson.ErrDanglingLink}
		}
	}
	return nil
}

func (s *scratch) Rollback() error {
	s.res.Reset()
	return nil
}
