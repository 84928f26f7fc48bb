package cmds

import (
	"strings"
	"time"

	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/upload"
	"github.com/spf13/cobra"
)

func newQueryCommand(a *app) *cobra.Command {
	var (
		files         []string
		uploads       []string
		uploadTimeout time.Duration
		noTUI         bool
	)
	cmd := &cobra.Command{
		Use:   "query [prompt]",
		Short: "Ask a question about one or more uploaded documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := append([]string(nil), files...)
			if len(uploads) > 0 {
				stored, err := a.uploadAll(cmd.Context(), upload.NewFilter(), uploads, uploadTimeout, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				selected = append(selected, stored...)
			}
			return a.run(cmd.Context(), runOptions{
				kind:   session.KindDocuments,
				files:  selected,
				prompt: strings.Join(args, " "),
				noTUI:  noTUI,
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "Server-side file to query (repeatable)")
	cmd.Flags().StringSliceVar(&uploads, "upload", nil, "Local PDF or directory of PDFs to upload and query (repeatable)")
	cmd.Flags().DurationVar(&uploadTimeout, "upload-timeout", 2*time.Minute, "Timeout for each upload")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Print the answer and exit instead of opening the terminal UI (implied when stdin or stdout is not a terminal)")
	return cmd
}
