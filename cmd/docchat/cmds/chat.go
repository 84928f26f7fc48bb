package cmds

import (
	"strings"

	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/spf13/cobra"
)

func newChatCommand(a *app) *cobra.Command {
	var (
		contentID string
		noTUI     bool
	)
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Continue the conversation about a processed document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), runOptions{
				kind:      session.KindChat,
				contentID: strings.TrimSpace(contentID),
				prompt:    strings.Join(args, " "),
				noTUI:     noTUI,
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&contentID, "content-id", "", "Id of the answer container to chat about")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Send the prompt, print the reply and exit (implied when stdin or stdout is not a terminal)")
	return cmd
}
