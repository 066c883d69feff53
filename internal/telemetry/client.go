package telemetry

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

// Surfaces a planner command can run on.
const (
	SurfaceCLI = "cli"
	SurfaceTUI = "tui"
	SurfaceMCP = "mcp"
)

// Client is the interface for telemetry clients.
type Client interface {
	// Track sends an event asynchronously. No-op when telemetry is disabled.
	Track(event string, properties map[string]any)

	// Close flushes pending events and closes the client.
	Close() error
}

// Properties is a type alias for event properties.
type Properties = map[string]any

// enqueuer is the subset of the PostHog client we use, so tests can capture events.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// Settings selects and configures the client built by New.
type Settings struct {
	Enabled  bool   // telemetry.enabled
	APIKey   string // telemetry.api_key; empty disables sending
	Endpoint string // self-hosted PostHog, optional
	Version  string
	Surface  string // SurfaceCLI, SurfaceTUI or SurfaceMCP
}

// PostHogClient sends planner events to PostHog. Every event carries the
// same base properties: version, surface, platform and a session id that
// groups the events of one planwing invocation.
type PostHogClient struct {
	mu      sync.Mutex
	client  enqueuer
	config  *Config
	base    map[string]any
	closed  bool
	enabled bool
}

func baseProperties(version, surface string) map[string]any {
	if surface == "" {
		surface = SurfaceCLI
	}
	return map[string]any{
		"planwing_version": version,
		"surface":          surface,
		"session_id":       uuid.NewString(),
		"os":               runtime.GOOS,
		"arch":             runtime.GOARCH,
		// No person profiles: events stay anonymous.
		"$process_person_profile": false,
	}
}

// NewPostHogClient creates a PostHog client for the consent state in cfg.
// The client drops every event when the API key is empty or cfg is nil.
func NewPostHogClient(s Settings, cfg *Config) (*PostHogClient, error) {
	c := &PostHogClient{config: cfg, base: baseProperties(s.Version, s.Surface)}
	if s.APIKey == "" || cfg == nil {
		return c, nil
	}

	phConfig := posthog.Config{
		BatchSize: 10,
		// The CLI exits quickly; flush often.
		Interval: time.Second,
		Logger:   quietPostHogLogger{},
	}
	if s.Endpoint != "" {
		phConfig.Endpoint = s.Endpoint
	}
	client, err := posthog.NewWithConfig(s.APIKey, phConfig)
	if err != nil {
		return nil, err
	}
	c.client = client
	c.enabled = true
	return c, nil
}

// newPostHogClientWithEnqueuer creates a client with a custom enqueuer (for testing).
func newPostHogClientWithEnqueuer(enq enqueuer, cfg *Config, s Settings) *PostHogClient {
	return &PostHogClient{
		client:  enq,
		config:  cfg,
		base:    baseProperties(s.Version, s.Surface),
		enabled: true,
	}
}

// Track enqueues event with the base properties merged under properties.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.closed || c.config == nil || !c.config.IsEnabled() {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	for k, v := range c.base {
		props.Set(k, v)
	}
	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.config.AnonymousID,
		Event:      event,
		Properties: props,
	})
}

// Close flushes pending events. Later Track calls are dropped.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// NoopClient is a telemetry client that does nothing.
type NoopClient struct{}

// Track is a no-op.
func (NoopClient) Track(string, map[string]any) {}

// Close is a no-op.
func (NoopClient) Close() error { return nil }

// New returns a PostHog client when telemetry is enabled, an API key is
// configured and the stored consent allows it; otherwise a NoopClient.
func New(s Settings) Client {
	if !s.Enabled || s.APIKey == "" {
		return NoopClient{}
	}
	cfg, err := Load()
	if err != nil || !cfg.IsEnabled() {
		return NoopClient{}
	}
	client, err := NewPostHogClient(s, cfg)
	if err != nil {
		return NoopClient{}
	}
	return client
}

// quietPostHogLogger keeps transport warnings out of CLI output.
type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
