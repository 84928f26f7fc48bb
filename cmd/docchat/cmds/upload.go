package cmds

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-go-golems/docchat/pkg/upload"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newUploadCommand(a *app) *cobra.Command {
	var (
		timeout     time.Duration
		maxSize     int64
		excludeDirs []string
		noGitIgnore bool
	)
	cmd := &cobra.Command{
		Use:   "upload PATH...",
		Short: "Upload PDF files and print the names the server stored them under",
		Long:  "Upload PDF files. Directories are searched for PDFs, honouring .gitignore files.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := upload.NewFilter(
				upload.WithMaxFileSize(maxSize),
				upload.WithExcludeDirs(excludeDirs),
				upload.WithDisableGitIgnore(noGitIgnore),
			)
			stored, err := a.uploadAll(cmd.Context(), filter, args, timeout, io.Discard)
			if err != nil {
				return err
			}
			for _, name := range stored {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for each upload")
	cmd.Flags().Int64Var(&maxSize, "max-size", upload.DefaultMaxFileSize, "Skip PDFs larger than this many bytes when searching directories")
	cmd.Flags().StringSliceVar(&excludeDirs, "exclude-dir", nil, "Directory name to skip when searching (repeatable)")
	cmd.Flags().BoolVar(&noGitIgnore, "no-gitignore", false, "Do not apply .gitignore files when searching directories")
	return cmd
}

// uploadAll uploads the files selected by filter one after the other and
// stops at the first failure.
func (a *app) uploadAll(
	ctx context.Context,
	filter *upload.Filter,
	paths []string,
	timeout time.Duration,
	progress io.Writer,
) ([]string, error) {
	client, err := upload.NewClient(a.settings.Server, timeout)
	if err != nil {
		return nil, err
	}
	paths, err = filter.Collect(paths)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no PDF files found")
	}
	stored := make([]string, 0, len(paths))
	for _, p := range paths {
		name, err := client.Upload(ctx, p)
		if err != nil {
			return stored, errors.Wrapf(err, "upload %s", p)
		}
		_, _ = fmt.Fprintf(progress, "uploaded %s as %s\n", p, name)
		stored = append(stored, name)
	}
	return stored, nil
}
