// Command voicefeat extracts speech feature records from audio files.
//
// Usage:
//
//	voicefeat [flags] <command> [args]
//
// Commands:
//
//	extract  - Extract records for files or TextGrid segments
//	batch    - Extract every audio file under a directory
//	config   - Print the effective configuration
package main

import (
	"fmt"
	"os"

	"github.com/mdobak/go-xerrors"

	"github.com/RyanBlaney/sonido-voice/cmd/voicefeat/commands"
	"github.com/RyanBlaney/sonido-voice/logging"
)

func main() {
	if err := commands.Execute(); err != nil {
		err := xerrors.New(err)
		logging.Debug("Command failed", logging.Fields{"trace": fmt.Sprintf("%+v", err)})
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
