package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saligia28/meetstream/internal/api"
	"github.com/saligia28/meetstream/internal/config"
)

const defaultConfigPath = "configs/config.yaml"

// Dependencies carries what the commands share.
type Dependencies struct {
	Version string
}

// NewRootCmd builds the meetstream command tree.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meetstream",
		Short: "Stream meeting audio to a live transcription backend",
		Long: "meetstream captures microphone audio, streams it to a transcription " +
			"backend in real time, and prints transcript segments as they arrive. " +
			"It can also import pre-recorded WAV files for batch transcription.",
	}

	rootCmd.Version = deps.Version
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "Path to configuration file")

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewImportCmd(deps))
	rootCmd.AddCommand(NewMeetingsCmd(deps))

	return rootCmd
}

// loadConfig reads the configuration named by the --config flag. A missing
// file at the default path is not an error; the built-in defaults apply.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if path == defaultConfigPath {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg := config.Default()
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}

	return config.Load(path)
}

// newAPIClient builds the REST client from configuration.
func newAPIClient(cfg *config.Config) (*api.Client, error) {
	return api.NewClient(api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.GetTimeoutDuration(),
		MaxRetries: cfg.API.MaxRetries,
	})
}

// initLogger creates the structured logger from the logging section.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}

// formatTimestamp renders a segment time as m:ss.cc for display.
func formatTimestamp(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	minutes := int(d.Minutes())
	rem := seconds - float64(minutes)*60
	return fmt.Sprintf("%d:%05.2f", minutes, rem)
}
