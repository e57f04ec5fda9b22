package main

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidServeMode = errors.New("invalid serve mode")

type ServeMode string

const (
	ServeModeMonolith ServeMode = "monolith"
	ServeModeConsole  ServeMode = "console"
	ServeModeBackend  ServeMode = "backend"
)

func ParseServeMode(rawInput string) (ServeMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawInput))
	if normalized == "" {
		return ServeModeMonolith, nil
	}

	mode := ServeMode(normalized)
	switch mode {
	case ServeModeMonolith, ServeModeConsole, ServeModeBackend:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidServeMode, rawInput)
	}
}

// ServesConsole reports whether the mode mounts the configuration console.
func (mode ServeMode) ServesConsole() bool {
	return mode == ServeModeMonolith || mode == ServeModeConsole
}

// ServesBackend reports whether the mode mounts the dispatch backend API.
func (mode ServeMode) ServesBackend() bool {
	return mode == ServeModeMonolith || mode == ServeModeBackend
}
