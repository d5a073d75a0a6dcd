package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMeetingsCmd builds the meeting listing command.
func NewMeetingsCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "meetings",
		Short: "List meetings known to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			client, err := newAPIClient(cfg)
			if err != nil {
				return err
			}

			meetings, err := client.Meetings(cmd.Context())
			if err != nil {
				return err
			}

			if len(meetings) == 0 {
				fmt.Println("No meetings found.")
				return nil
			}

			for _, m := range meetings {
				title := "(untitled)"
				if m.Title != nil && *m.Title != "" {
					title = *m.Title
				}
				line := fmt.Sprintf("%-24s %s", m.ID, title)
				if m.Duration != nil {
					line += fmt.Sprintf("  %s", formatTimestamp(*m.Duration))
				}
				if m.Language != nil && *m.Language != "" {
					line += fmt.Sprintf("  [%s]", *m.Language)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
