package telemetry

// Event names. Properties never carry task notes or ids.
const (
	EventTaskCreated        = "task_created"
	EventTaskUpdated        = "task_updated"
	EventTaskMoved          = "task_moved"
	EventMutationRolledBack = "mutation_rolled_back"
	EventWeekGenerated      = "week_generated"
	EventWeekClosed         = "week_closed"
	EventCarryOverConfirmed = "carry_over_confirmed"
	EventSprintClosed       = "sprint_closed"
	EventCommandError       = "command_error"
)

// Recorder wraps a Client and tolerates a nil one.
type Recorder struct {
	client Client
}

// NewRecorder wraps c. A nil client records nothing.
func NewRecorder(c Client) *Recorder {
	return &Recorder{client: c}
}

// Track forwards the event.
func (r *Recorder) Track(event string, props map[string]any) {
	if r == nil || r.client == nil {
		return
	}
	r.client.Track(event, props)
}

// CommandError records the failed command and error code only.
func (r *Recorder) CommandError(command, code string) {
	r.Track(EventCommandError, Properties{"command": command, "code": code})
}

// Close flushes the underlying client.
func (r *Recorder) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
