package main

import (
	"fmt"
	"os"

	"raceserver/internal/replay"
)

// runCLI handles diagnostic subcommands that don't start the server.
// Returns true if a subcommand was handled.
func runCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("raceserver %s\n", Version)
		return true
	case "replay":
		return cliReplay(args[1:])
	default:
		return false
	}
}

func cliReplay(args []string) bool {
	if len(args) == 0 || args[0] != "list" {
		return false
	}

	dir := "./replays"
	for i := 1; i < len(args); i++ {
		if args[i] == "--replay-dir" && i+1 < len(args) {
			dir = args[i+1]
			i++
		}
	}

	replays, err := replay.ListReplays(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error listing replays: %v\n", err)
		os.Exit(1)
	}
	if len(replays) == 0 {
		fmt.Println("No replays found.")
		return true
	}
	for _, r := range replays {
		fmt.Printf("  %s  session=%s track=%s frames=%s\n", r.Path, r.Header.Metadata.Session, r.Header.Metadata.Track, r.Header.FrameCount)
	}
	return true
}
