package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saligia28/meetstream/internal/capture"
)

// NewDevicesCmd builds the input-device listing command.
func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := capture.Devices()
			if err != nil {
				return err
			}

			if len(devices) == 0 {
				fmt.Println("No audio input devices found.")
				return nil
			}

			for _, d := range devices {
				marker := " "
				if d.IsDefault {
					marker = "*"
				}
				fmt.Printf("%s %-40s %d ch, %d Hz\n", marker, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
			}
			fmt.Println("\n* default input")
			return nil
		},
	}
}
