// Package display shows download and install progress on the terminal and
// delivers user-facing notifications.
package display

// Task represents a unit of work that can be monitored.
type Task interface {
	// Log adds a log message associated with this task.
	Log(msg string)
	// SetStage updates the current stage of the task (e.g. "Download", "Extract")
	// and the target file/folder being worked on.
	SetStage(name string, target string)
	// Progress updates the completion percentage (0-100) and status message.
	Progress(percent int, message string)
	// Done marks the task as completed and removes it from the display.
	// It is the responsibility of the caller who created the task via StartTask.
	Done()
}

// Display handles the visualization of tasks, logs and notifications.
type Display interface {
	// StartTask creates and returns a new tracked Task.
	StartTask(name string) Task
	// Log adds a log line, shown only in verbose mode.
	Log(msg string)
	// Print adds a primary output message to the display.
	Print(msg string)
	// Notify shows a success notification to the user.
	Notify(body string)
	// Fail shows an error notification to the user.
	Fail(body string)
	// SetVerbose enables or disables verbose logging.
	SetVerbose(v bool)
	// Close cleans up any resources and ensures final output is rendered.
	Close()
}

type nopTask struct{}

func (nopTask) Log(string)              {}
func (nopTask) SetStage(string, string) {}
func (nopTask) Progress(int, string)    {}
func (nopTask) Done()                   {}

// NopTask returns a Task that ignores all updates.
func NopTask() Task {
	return nopTask{}
}
