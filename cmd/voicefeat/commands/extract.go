package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voice/audio"
	"github.com/RyanBlaney/sonido-voice/batch"
	"github.com/RyanBlaney/sonido-voice/segments"
)

var (
	extractInterval string
	extractLabel    string
	extractTextGrid string
	extractTier     string
	extractDB       string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract feature records for audio files",
	Long: `Extract one feature record per file, or one per labelled TextGrid
interval.

Without --interval or --textgrid the whole file is analysed. WAV is read
natively; other formats need ffmpeg.

Examples:
  voicefeat extract a.wav b.mp3
  voicefeat extract a.wav --interval 0.5:1.25 --label vowel --format yaml
  voicefeat extract a.wav --textgrid a.TextGrid --tier phrases`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := extractTasks(args)
		if err != nil {
			return err
		}

		p, err := newPipeline(cfg, extractDB, 0)
		if err != nil {
			return err
		}
		defer p.Close()

		return report(p.runner.Run(cmd.Context(), tasks), cfg.Output.Format)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractInterval, "interval", "i", "", "interval start:end in seconds")
	extractCmd.Flags().StringVarP(&extractLabel, "label", "l", "", "label stored with each record")
	extractCmd.Flags().StringVarP(&extractTextGrid, "textgrid", "t", "", "TextGrid whose labelled intervals become records")
	extractCmd.Flags().StringVar(&extractTier, "tier", "", "TextGrid tier (default: first interval tier)")
	extractCmd.Flags().StringVar(&extractDB, "db", "", "SQLite database receiving the records")
	rootCmd.AddCommand(extractCmd)
}

func extractTasks(files []string) ([]batch.Task, error) {
	if extractTextGrid != "" {
		if extractInterval != "" {
			return nil, fmt.Errorf("--interval and --textgrid are exclusive")
		}
		if len(files) != 1 {
			return nil, fmt.Errorf("--textgrid needs exactly one audio file, got %d", len(files))
		}
		return textGridTasks(files[0], extractTextGrid, extractTier)
	}

	var iv *audio.Interval
	if extractInterval != "" {
		parsed, err := parseInterval(extractInterval)
		if err != nil {
			return nil, err
		}
		iv = &parsed
	}
	tasks := make([]batch.Task, len(files))
	for i, f := range files {
		tasks[i] = batch.Task{Path: f, Label: extractLabel, Interval: iv}
	}
	return tasks, nil
}

// textGridTasks returns one task per labelled interval of tier.
func textGridTasks(audioPath, gridPath, tier string) ([]batch.Task, error) {
	grid, err := segments.ReadTextGrid(gridPath)
	if err != nil {
		return nil, err
	}
	t, err := grid.Tier(tier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", gridPath, err)
	}

	var tasks []batch.Task
	for _, s := range t.Labelled() {
		iv := s.Interval
		tasks = append(tasks, batch.Task{Path: audioPath, Label: s.Label, Interval: &iv})
	}
	return tasks, nil
}

// parseInterval reads "start:end" in seconds.
func parseInterval(s string) (audio.Interval, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return audio.Interval{}, fmt.Errorf("interval %q is not start:end", s)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(from), 64)
	if err != nil {
		return audio.Interval{}, fmt.Errorf("interval start %q: %w", from, err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(to), 64)
	if err != nil {
		return audio.Interval{}, fmt.Errorf("interval end %q: %w", to, err)
	}
	return audio.Interval{Start: start, End: end}, nil
}
