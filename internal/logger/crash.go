package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const (
	// CrashLogDir is the directory for crash logs inside the config directory
	CrashLogDir = "crash_logs"

	// MaxCrashLogs is the maximum number of crash logs to keep
	MaxCrashLogs = 10

	crashPrefix = "crash_"
	crashSuffix = ".log"
	maxInputLen = 500
)

// PlannerState is what the crash log knows about the board when a command
// panics. Every field is optional.
type PlannerState struct {
	Version      string `json:"version"`
	Command      string `json:"command"`
	Input        string `json:"input,omitempty"`
	ProjectID    int64  `json:"project_id,omitempty"`
	SprintID     int64  `json:"sprint_id,omitempty"`
	LastMutation string `json:"last_mutation,omitempty"`
}

type crashState struct {
	mu       sync.RWMutex
	basePath string
	state    PlannerState
}

var crash = &crashState{}

func (c *crashState) update(fn func(*crashState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

func (c *crashState) snapshot() (string, PlannerState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.basePath, c.state
}

// SetBasePath sets the directory crash_logs is created in (typically ~/.planwing).
func SetBasePath(path string) { crash.update(func(c *crashState) { c.basePath = path }) }

// SetVersion sets the application version for crash logs.
func SetVersion(version string) { crash.update(func(c *crashState) { c.state.Version = version }) }

// SetCommand sets the command path being executed, e.g. "planwing week close".
func SetCommand(cmd string) { crash.update(func(c *crashState) { c.state.Command = cmd }) }

// SetLastInput records the command arguments.
func SetLastInput(input string) {
	input = clip(strings.TrimSpace(input), maxInputLen)
	crash.update(func(c *crashState) { c.state.Input = input })
}

// SetProject records the selected project id.
func SetProject(id int64) { crash.update(func(c *crashState) { c.state.ProjectID = id }) }

// SetSprint records the sprint the board loaded.
func SetSprint(id int64) { crash.update(func(c *crashState) { c.state.SprintID = id }) }

// SetLastMutation records the mutation the board started last,
// e.g. "move task 12 from backlog to week:5".
func SetLastMutation(desc string) {
	desc = clip(desc, maxInputLen)
	crash.update(func(c *crashState) { c.state.LastMutation = desc })
}

func clip(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "... [truncated]"
}

// CrashLog represents a crash log entry.
type CrashLog struct {
	PlannerState
	Timestamp  time.Time `json:"timestamp"`
	PanicValue string    `json:"panic_value"`
	StackTrace string    `json:"stack_trace"`
	GoVersion  string    `json:"go_version"`
	OS         string    `json:"os"`
	Arch       string    `json:"arch"`
}

// HandlePanic is a deferred function that recovers from panics and logs them.
// Usage: defer logger.HandlePanic()
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	log := newCrashLog(r, time.Now())
	path, err := writeCrashLog(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n[CRASH] Failed to write crash log: %v\n", err)
		fmt.Fprintf(os.Stderr, "[CRASH] Panic: %v\n%s\n", r, log.StackTrace)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "PlanWing hit an unexpected error and stopped.")
	if log.LastMutation != "" {
		fmt.Fprintf(os.Stderr, "The last change was %q; run 'planwing board' to check it reached the server.\n", log.LastMutation)
	}
	if err == nil {
		fmt.Fprintf(os.Stderr, "\nA crash log has been saved to:\n  %s\n", path)
	}
	fmt.Fprintf(os.Stderr, "\nPlease report this issue at:\n  https://github.com/josephgoksu/PlanWing/issues\n\n")
	os.Exit(1)
}

func newCrashLog(panicValue any, at time.Time) CrashLog {
	_, state := crash.snapshot()
	return CrashLog{
		PlannerState: state,
		Timestamp:    at,
		PanicValue:   fmt.Sprintf("%v", panicValue),
		StackTrace:   string(debug.Stack()),
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
	}
}

// writeCrashLog prunes old logs and writes log, returning its path.
func writeCrashLog(log CrashLog) (string, error) {
	dir := crashLogDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create crash log dir: %w", err)
	}
	// Keep one slot free for the log being written.
	if err := pruneCrashLogs(dir, MaxCrashLogs-1); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Failed to clean old crash logs: %v\n", err)
	}

	path := crashLogPath(log.Timestamp)
	if err := os.WriteFile(path, []byte(log.String()), 0644); err != nil {
		return "", fmt.Errorf("write crash log: %w", err)
	}
	return path, nil
}

func crashLogDir() string {
	base, _ := crash.snapshot()
	if base == "" {
		base = ".planwing"
	}
	return filepath.Join(base, CrashLogDir)
}

func crashLogPath(t time.Time) string {
	return filepath.Join(crashLogDir(), crashPrefix+t.Format("20060102_150405")+crashSuffix)
}

// String renders the log as the text written to disk.
func (l CrashLog) String() string {
	var sb strings.Builder
	rule := strings.Repeat("=", 80)

	sb.WriteString(rule + "\nPLANWING CRASH LOG\n" + rule + "\n\n")
	header := [][2]string{
		{"Timestamp", l.Timestamp.Format(time.RFC3339)},
		{"Version", l.Version},
		{"Command", l.Command},
		{"Go", l.GoVersion},
		{"OS/Arch", l.OS + "/" + l.Arch},
	}
	if l.ProjectID != 0 {
		header = append(header, [2]string{"Project", fmt.Sprint(l.ProjectID)})
	}
	if l.SprintID != 0 {
		header = append(header, [2]string{"Sprint", fmt.Sprint(l.SprintID)})
	}
	for _, kv := range header {
		sb.WriteString(fmt.Sprintf("%-10s %s\n", kv[0]+":", kv[1]))
	}

	section(&sb, "PANIC VALUE", l.PanicValue)
	section(&sb, "STACK TRACE", l.StackTrace)
	section(&sb, "LAST MUTATION", l.LastMutation)
	section(&sb, "COMMAND INPUT", l.Input)

	sb.WriteString("\n" + rule + "\nEND OF CRASH LOG\n" + rule + "\n")
	return sb.String()
}

// section writes a titled block; empty bodies are skipped.
func section(sb *strings.Builder, title, body string) {
	if body == "" {
		return
	}
	rule := strings.Repeat("-", 80)
	sb.WriteString("\n" + rule + "\n" + title + "\n" + rule + "\n")
	sb.WriteString(strings.TrimRight(body, "\n") + "\n")
}

func isCrashLog(e os.DirEntry) bool {
	return !e.IsDir() && strings.HasPrefix(e.Name(), crashPrefix) && strings.HasSuffix(e.Name(), crashSuffix)
}

// pruneCrashLogs removes the oldest crash logs in dir until at most keep remain.
// Names embed the timestamp and os.ReadDir sorts by name.
func pruneCrashLogs(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var logs []string
	for _, e := range entries {
		if isCrashLog(e) {
			logs = append(logs, e.Name())
		}
	}
	for i := 0; i < len(logs)-keep; i++ {
		if err := os.Remove(filepath.Join(dir, logs[i])); err != nil {
			return fmt.Errorf("remove old crash log %s: %w", logs[i], err)
		}
	}
	return nil
}

// ListCrashLogs returns crash log paths, oldest first.
func ListCrashLogs() ([]string, error) {
	dir := crashLogDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var logs []string
	for _, e := range entries {
		if isCrashLog(e) {
			logs = append(logs, filepath.Join(dir, e.Name()))
		}
	}
	return logs, nil
}

// ReadCrashLog reads a crash log file.
func ReadCrashLog(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
