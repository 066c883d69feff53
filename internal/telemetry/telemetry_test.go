package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEnqueuer captures events for testing.
type mockEnqueuer struct {
	mu     sync.Mutex
	events []posthog.Capture
	closed bool
}

func (m *mockEnqueuer) Enqueue(msg posthog.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if capture, ok := msg.(posthog.Capture); ok {
		m.events = append(m.events, capture)
	}
	return nil
}

func (m *mockEnqueuer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockEnqueuer) getEvents() []posthog.Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]posthog.Capture(nil), m.events...)
}

func TestPostHogClient_Track_WhenEnabled(t *testing.T) {
	cfg := optedIn("anon-1")
	mock := &mockEnqueuer{}
	client := newPostHogClientWithEnqueuer(mock, cfg, Settings{Version: "0.3.0", Surface: SurfaceTUI})

	client.Track(EventTaskMoved, Properties{"from": "backlog", "container": "week"})
	client.Track(EventMutationRolledBack, Properties{"op": "move", "surface": "spoofed"})

	events := mock.getEvents()
	require.Len(t, events, 2)
	e := events[0]
	assert.Equal(t, EventTaskMoved, e.Event)
	assert.Equal(t, "anon-1", e.DistinctId)
	assert.Equal(t, "backlog", e.Properties["from"])
	assert.Equal(t, runtime.GOOS, e.Properties["os"])
	assert.Equal(t, runtime.GOARCH, e.Properties["arch"])
	assert.Equal(t, "0.3.0", e.Properties["planwing_version"])
	assert.Equal(t, SurfaceTUI, e.Properties["surface"])
	assert.Equal(t, false, e.Properties["$process_person_profile"])

	assert.NotEmpty(t, e.Properties["session_id"])
	assert.Equal(t, e.Properties["session_id"], events[1].Properties["session_id"], "one session per client")
	assert.Equal(t, SurfaceTUI, events[1].Properties["surface"], "base properties win over event properties")
}

func TestPostHogClient_DefaultSurface(t *testing.T) {
	mock := &mockEnqueuer{}
	client := newPostHogClientWithEnqueuer(mock, optedIn(""), Settings{Version: "v"})
	client.Track(EventWeekGenerated, nil)
	require.Len(t, mock.getEvents(), 1)
	assert.Equal(t, SurfaceCLI, mock.getEvents()[0].Properties["surface"])
}

func TestPostHogClient_Track_Dropped(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		close  bool
	}{
		{name: "disabled", config: &Config{Enabled: false, AnonymousID: "a"}},
		{name: "consent to older prompt", config: &Config{Enabled: true, ConsentVersion: 1, AnonymousID: "a"}},
		{name: "nil config", config: nil},
		{name: "after close", config: optedIn(""), close: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockEnqueuer{}
			client := newPostHogClientWithEnqueuer(mock, tt.config, Settings{Version: "v"})
			if tt.close {
				require.NoError(t, client.Close())
			}
			client.Track(EventWeekClosed, nil)
			assert.Empty(t, mock.getEvents())
		})
	}
}

func TestNewPostHogClient_EmptyAPIKey(t *testing.T) {
	client, err := NewPostHogClient(Settings{Version: "v"}, optedIn(""))
	require.NoError(t, err)
	client.Track(EventSprintClosed, nil)
	assert.NoError(t, client.Close())
}

func TestPostHogClient_Close(t *testing.T) {
	mock := &mockEnqueuer{}
	client := newPostHogClientWithEnqueuer(mock, optedIn(""), Settings{})
	require.NoError(t, client.Close())
	assert.True(t, mock.closed)
	assert.NoError(t, client.Close(), "second close is a no-op")
}

func TestNew_DisabledIsNoop(t *testing.T) {
	assert.IsType(t, NoopClient{}, New(Settings{Enabled: false, APIKey: "key"}))
	assert.IsType(t, NoopClient{}, New(Settings{Enabled: true}), "missing api key")
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	r.Track(EventTaskCreated, nil)
	NewRecorder(nil).CommandError("task add", "NETWORK")

	mock := &mockEnqueuer{}
	rec := NewRecorder(newPostHogClientWithEnqueuer(mock, optedIn(""), Settings{Surface: SurfaceMCP}))
	rec.CommandError("week close", "FORBIDDEN")
	events := mock.getEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "FORBIDDEN", events[0].Properties["code"])
	assert.Equal(t, SurfaceMCP, events[0].Properties["surface"])
}

func optedIn(id string) *Config {
	return &Config{Enabled: true, ConsentVersion: ConsentVersion, AnonymousID: id}
}

func TestConfig_LoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	SetConfigDir(dir)
	defer SetConfigDir("")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled())
	assert.True(t, cfg.NeedsConsent())
	assert.Len(t, cfg.AnonymousID, 36)

	cfg.Enable()
	require.NoError(t, cfg.Save())
	info, err := os.Stat(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := Load()
	require.NoError(t, err)
	assert.True(t, loaded.IsEnabled())
	assert.Equal(t, cfg.AnonymousID, loaded.AnonymousID)
	require.NotNil(t, loaded.AnsweredAt)
}

func TestConfig_OlderPromptAsksAgain(t *testing.T) {
	cfg := &Config{Enabled: true, ConsentVersion: ConsentVersion - 1, AnonymousID: "a"}
	assert.True(t, cfg.NeedsConsent())
	assert.False(t, cfg.IsEnabled())

	cfg.Enable()
	assert.False(t, cfg.NeedsConsent())
	assert.True(t, cfg.IsEnabled())
}

func TestConfig_DisableRotatesID(t *testing.T) {
	cfg := optedIn("anon-1")
	cfg.Disable()
	assert.False(t, cfg.IsEnabled())
	assert.NotEqual(t, "anon-1", cfg.AnonymousID)

	id := cfg.AnonymousID
	cfg.Disable()
	assert.Equal(t, id, cfg.AnonymousID, "already opted out")
}

func TestConfig_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	SetConfigDir(dir)
	defer SetConfigDir("")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{"), 0600))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ConfigFileName)
}

func TestPromptForConsent(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		interactive bool
		want        bool
	}{
		{name: "yes", input: "y\n", interactive: true, want: true},
		{name: "default no", input: "\n", interactive: true, want: false},
		{name: "non-interactive", input: "y\n", interactive: false, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetConfigDir(t.TempDir())
			defer SetConfigDir("")

			var out bytes.Buffer
			got, err := PromptForConsent(strings.NewReader(tt.input), &out, tt.interactive)
			if err != nil {
				t.Fatalf("PromptForConsent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PromptForConsent() = %v, want %v", got, tt.want)
			}
			cfg, _ := Load()
			if cfg.NeedsConsent() {
				t.Error("answer should be persisted")
			}
			if tt.interactive && !strings.Contains(out.String(), "Help improve PlanWing?") {
				t.Error("prompt not shown")
			}
		})
	}
}
