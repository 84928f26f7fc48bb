package cmds

import (
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newOptionsCommand(a *app) *cobra.Command {
	var (
		files     []string
		contentID string
		input     string
	)
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print the request that would be sent with the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := session.ExtractOptions(a.settings.Controls(files)).Request(input, contentID)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(req); err != nil {
				return errors.Wrap(err, "encode request")
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "Server-side file to include")
	cmd.Flags().StringVar(&contentID, "content-id", "", "Content id for a chat request")
	cmd.Flags().StringVar(&input, "input", "", "Prompt text")
	return cmd
}
