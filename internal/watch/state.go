package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// WatcherState describes a detached watcher process.
type WatcherState struct {
	PID        int       `json:"pid"`
	Path       string    `json:"path"`
	ConfigFile string    `json:"config_file,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FileCount  int       `json:"file_count"`
	LastSync   time.Time `json:"last_sync"`
}

// StateDir returns the directory holding watcher state files,
// $XDG_STATE_HOME/hyperast/watchers or ~/.local/state/hyperast/watchers.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "hyperast", "watchers")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "hyperast", "watchers")
}

func StatePath(pid int) string {
	return filepath.Join(StateDir(), fmt.Sprintf("%d.json", pid))
}

func SaveState(state *WatcherState) error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return errors.Wrap(errors.CodeInternal, "creating state directory", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "encoding watcher state", err)
	}
	return os.WriteFile(StatePath(state.PID), data, 0o644)
}

func LoadState(pid int) (*WatcherState, error) {
	data, err := os.ReadFile(StatePath(pid))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundError(fmt.Sprintf("watcher %d", pid))
	}
	if err != nil {
		return nil, err
	}
	var state WatcherState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(errors.CodeParse, "decoding watcher state", err)
	}
	return &state, nil
}

// ListStates returns the states of running watchers sorted by PID. State
// files of dead processes are removed.
func ListStates() ([]*WatcherState, error) {
	dir := StateDir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var states []*WatcherState
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var state WatcherState
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		if !isProcessRunning(state.PID) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
			continue
		}
		states = append(states, &state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].PID < states[j].PID })
	return states, nil
}

func RemoveState(pid int) error {
	err := os.Remove(StatePath(pid))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// daemonArgs are the arguments a detached watcher is started with.
func daemonArgs(path, configFile string) []string {
	args := []string{"watch", path, "--foreground"}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	return args
}
