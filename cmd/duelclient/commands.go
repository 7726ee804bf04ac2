package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vovakirdan/typeduel-server/internal/room"
)

type commandKind int

const (
	cmdUnknown commandKind = iota
	cmdReady
	cmdStats
	cmdLeave
	cmdStatus
	cmdQuit
)

type command struct {
	kind  commandKind
	stats room.Stats
}

// parseCommand reads one stdin line. Stats take "stats <wpm> <accuracy> [errors]".
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdUnknown}, nil
	}

	switch strings.ToLower(fields[0]) {
	case "ready", "r":
		return command{kind: cmdReady}, nil
	case "status", "s":
		return command{kind: cmdStatus}, nil
	case "leave":
		return command{kind: cmdLeave}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	case "stats":
		if len(fields) < 3 {
			return command{}, fmt.Errorf("usage: stats <wpm> <accuracy> [errors]")
		}
		wpm, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return command{}, fmt.Errorf("bad wpm %q", fields[1])
		}
		acc, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return command{}, fmt.Errorf("bad accuracy %q", fields[2])
		}
		stats := room.Stats{WPM: wpm, Accuracy: acc}
		if len(fields) > 3 {
			n, err := strconv.Atoi(fields[3])
			if err != nil {
				return command{}, fmt.Errorf("bad errors %q", fields[3])
			}
			stats.Errors = n
		}
		return command{kind: cmdStats, stats: stats}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}
