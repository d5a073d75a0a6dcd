package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saligia28/meetstream/internal/audio"
)

// NewImportCmd builds the batch WAV upload command.
func NewImportCmd(deps *Dependencies) *cobra.Command {
	var meetingID string

	cmd := &cobra.Command{
		Use:   "import <file.wav>",
		Short: "Upload a recorded WAV file for batch transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if meetingID == "" {
				return fmt.Errorf("--meeting is required")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			// Validate the container before shipping it.
			samples, rate, err := audio.DecodeWAV(data)
			if err != nil {
				return fmt.Errorf("%s is not an uploadable WAV file: %w", args[0], err)
			}
			duration := float64(len(samples)) / float64(rate)
			fmt.Printf("Uploading %s (%.1fs at %d Hz) to meeting %s\n", args[0], duration, rate, meetingID)

			client, err := newAPIClient(cfg)
			if err != nil {
				return err
			}

			segments, err := client.UploadRecording(cmd.Context(), meetingID, data)
			if err != nil {
				return err
			}

			if len(segments) == 0 {
				fmt.Println("Upload accepted, no segments returned.")
				return nil
			}
			printSegments(segments)
			return nil
		},
	}

	cmd.Flags().StringVarP(&meetingID, "meeting", "m", "", "Meeting id to attach the recording to (required)")

	return cmd
}
