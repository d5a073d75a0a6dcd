package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/saligia28/meetstream/internal/metrics"
	"github.com/saligia28/meetstream/internal/protocol"
	"github.com/saligia28/meetstream/internal/recorder"
	"github.com/saligia28/meetstream/internal/session"
	"github.com/saligia28/meetstream/internal/transcript"
)

// NewRecordCmd builds the live recording command.
func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var (
		meetingID      string
		aggressiveness int
		speechRatio    int
		noDetection    bool
		showLevel      bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the microphone and stream it for live transcription",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := initLogger(cfg.Logging)

			if meetingID == "" {
				return fmt.Errorf("--meeting is required")
			}

			detection := cfg.Detection.Protocol()
			if noDetection {
				detection = nil
			} else if cmd.Flags().Changed("aggressiveness") || cmd.Flags().Changed("speech-ratio") {
				d := protocol.DefaultDetectionConfig()
				if detection != nil {
					d = *detection
				}
				if cmd.Flags().Changed("aggressiveness") {
					d.Aggressiveness = aggressiveness
				}
				if cmd.Flags().Changed("speech-ratio") {
					d.SpeechRatio = speechRatio
				}
				if err := d.Validate(); err != nil {
					return err
				}
				detection = &d
			}

			appMetrics := metrics.NewMetrics()
			if cfg.Metrics.Enabled {
				go serveMetrics(cfg.Metrics.Address, logger)
			}

			store, err := newAPIClient(cfg)
			if err != nil {
				return err
			}

			failed := make(chan *session.Error, 1)
			rec := recorder.New(recorder.Config{
				StreamBaseURL:    cfg.Transport.BaseURL,
				TargetSampleRate: cfg.Capture.TargetSampleRate,
				FrameSize:        cfg.Capture.FrameSize,
				Device:           cfg.Capture.Device,
				Detection:        detection,
				QueueCapacity:    cfg.Transport.QueueCapacity,
			}, logger, appMetrics, store, recorder.Callbacks{
				OnSegments: printSegments,
				OnError: func(e *session.Error) {
					select {
					case failed <- e:
					default:
					}
				},
				OnState: func(s session.State) {
					logger.Debug("State changed", slog.String("state", s.String()))
				},
				OnLevel: levelPrinter(showLevel),
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := rec.Start(ctx, meetingID); err != nil {
				return err
			}

			fmt.Printf("Recording meeting %s (Ctrl-C to stop)\n", meetingID)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case sig := <-sigChan:
				logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			case e := <-failed:
				rec.Stop()
				return fmt.Errorf("session failed: %s", e.Message)
			}

			rec.Stop()
			fmt.Printf("Stopped. %d segments transcribed.\n", len(rec.Segments()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&meetingID, "meeting", "m", "", "Meeting id to record into (required)")
	cmd.Flags().IntVar(&aggressiveness, "aggressiveness", protocol.DefaultAggressiveness, "Detection aggressiveness (0-3)")
	cmd.Flags().IntVar(&speechRatio, "speech-ratio", protocol.DefaultSpeechRatio, "Minimum speech ratio percent (30-80)")
	cmd.Flags().BoolVar(&noDetection, "no-detection", false, "Skip the detection config handshake")
	cmd.Flags().BoolVar(&showLevel, "level", false, "Render a live input level meter on stderr")

	return cmd
}

func printSegments(segments []transcript.Segment) {
	for _, seg := range segments {
		fmt.Printf("[%s - %s] %s: %s\n",
			formatTimestamp(seg.Start), formatTimestamp(seg.End), seg.Speaker, seg.Text)
	}
}

// levelPrinter returns a level callback rendering a crude meter, or nil.
func levelPrinter(enabled bool) func(float64) {
	if !enabled {
		return nil
	}
	return func(level float64) {
		bars := int(level * 30)
		meter := make([]byte, 30)
		for i := range meter {
			if i < bars {
				meter[i] = '#'
			} else {
				meter[i] = '.'
			}
		}
		fmt.Fprintf(os.Stderr, "\r[%s] %.2f", meter, level)
	}
}

func serveMetrics(address string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("Metrics listener started", slog.String("address", address))
	if err := http.ListenAndServe(address, mux); err != nil {
		logger.Error("Metrics listener failed", slog.String("error", err.Error()))
	}
}
