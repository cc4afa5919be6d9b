package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-voice/batch"
)

var (
	batchWorkers   int
	batchDB        string
	batchExts      []string
	batchTextGrids bool
	batchTier      string
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract records for every audio file under a directory",
	Long: `Walk a directory and extract a record per audio file. With --textgrids,
a file with a TextGrid of the same base name yields one record per labelled
interval instead.

A file that fails to decode or analyse is reported and skipped; the other
files are unaffected.

Examples:
  voicefeat batch ./recordings --workers 8
  voicefeat batch ./corpus --textgrids --tier words --db features.db`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := walkTasks(args[0])
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			return fmt.Errorf("no audio files under %s", args[0])
		}

		p, err := newPipeline(cfg, batchDB, batchWorkers)
		if err != nil {
			return err
		}
		defer p.Close()

		rep := p.runner.Run(cmd.Context(), tasks)
		fmt.Fprintf(os.Stderr, "run %s: %d tasks, %d failed, %s\n", rep.RunID, len(rep.Results), rep.Failed, rep.Duration)
		return report(rep, cfg.Output.Format)
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "files analysed in parallel (default from config)")
	batchCmd.Flags().StringVar(&batchDB, "db", "", "SQLite database receiving the records")
	batchCmd.Flags().StringSliceVar(&batchExts, "ext", []string{".wav", ".mp3", ".flac", ".ogg", ".m4a"}, "audio file extensions")
	batchCmd.Flags().BoolVar(&batchTextGrids, "textgrids", false, "use sibling TextGrid files for segments")
	batchCmd.Flags().StringVar(&batchTier, "tier", "", "TextGrid tier (default: first interval tier)")
	rootCmd.AddCommand(batchCmd)
}

func walkTasks(root string) ([]batch.Task, error) {
	var tasks []batch.Task
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(batchExts, strings.ToLower(filepath.Ext(path))) {
			return nil
		}

		if batchTextGrids {
			grid := strings.TrimSuffix(path, filepath.Ext(path)) + ".TextGrid"
			if _, err := os.Stat(grid); err == nil {
				segs, err := textGridTasks(path, grid, batchTier)
				if err != nil {
					return err
				}
				tasks = append(tasks, segs...)
				return nil
			}
		}
		tasks = append(tasks, batch.Task{Path: path})
		return nil
	})
	return tasks, err
}
