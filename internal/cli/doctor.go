package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saligia28/meetstream/internal/capture"
)

// NewDoctorCmd builds the environment check command.
func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check capture support and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ok := true

			if err := capture.Probe(); err != nil {
				check("Audio capture", false, err.Error())
				ok = false
			} else {
				check("Audio capture", true, "input device available")
			}

			client, err := newAPIClient(cfg)
			if err != nil {
				check("Backend API", false, err.Error())
				ok = false
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				if _, err := client.Meetings(ctx); err != nil {
					check("Backend API", false, fmt.Sprintf("%s unreachable: %v", cfg.API.BaseURL, err))
					ok = false
				} else {
					check("Backend API", true, cfg.API.BaseURL)
				}
			}

			check("Stream endpoint", true, cfg.Transport.BaseURL)
			check("Detection config", cfg.Detection.Validate() == nil,
				fmt.Sprintf("aggressiveness=%d speech_ratio=%d%%", cfg.Detection.Aggressiveness, cfg.Detection.SpeechRatio))

			if ok {
				fmt.Println("\nAll checks passed. Ready to record.")
				return nil
			}
			return fmt.Errorf("some checks failed")
		},
	}
}

func check(name string, passed bool, detail string) {
	status := "FAIL"
	if passed {
		status = "ok"
	}
	fmt.Printf("%-18s [%s] %s\n", name, status, detail)
}
