package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voice/config"
	"github.com/RyanBlaney/sonido-voice/logging"
)

var (
	configPath   string
	envFile      string
	logLevel     string
	formatOutput string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "voicefeat",
	Short: "Speech feature extraction",
	Long: `voicefeat - extract acoustic feature records from speech audio.

Each record holds pitch, formant and intensity contours sampled at fixed
positions of an interval, harmonicity, MFCCs, jitter, shimmer, spectral
moments, spectral series and glottal source statistics.

Configuration is read from --config (YAML), then VOICEFEAT_* environment
variables, e.g. VOICEFEAT_BATCH_WORKERS=8. A .env file is loaded first.

Examples:
  voicefeat extract a.wav
  voicefeat extract a.wav --interval 0.5:1.25 --label vowel
  voicefeat extract a.wav --textgrid a.TextGrid --tier phrases
  voicefeat batch ./recordings --workers 8 --db features.db
  voicefeat config > voicefeat.yaml`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&formatOutput, "format", "", "output format: json, yaml, msgpack (default from config)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// a missing .env is normal
	_ = godotenv.Load(envFile)

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if formatOutput != "" {
		loaded.Output.Format = formatOutput
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	level, _ := logging.ParseLevel(loaded.Log.Level)
	logging.SetLevel(level)

	cfg = loaded
	return nil
}
