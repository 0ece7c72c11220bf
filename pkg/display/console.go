package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const clearLine = "\x1b[1A\x1b[2K"

// consoleDisplay renders active tasks as a block of status lines at the
// bottom of the terminal; logs and notifications scroll above it.
// Mutable
type consoleDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	theme   *Theme
	verbose bool
	tasks   []*consoleTask
	drawn   int
}

// NewConsole creates a Display that writes to standard error.
func NewConsole() Display {
	return NewWriterDisplay(os.Stderr)
}

// NewWriterDisplay creates a Display that writes to the provided io.Writer.
func NewWriterDisplay(w io.Writer) Display {
	return &consoleDisplay{
		out:   w,
		theme: DefaultTheme(),
	}
}

func (d *consoleDisplay) SetVerbose(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verbose = v
}

func (d *consoleDisplay) StartTask(name string) Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := &consoleTask{d: d, name: name}
	d.clearLocked()
	d.tasks = append(d.tasks, t)
	d.drawLocked()
	return t
}

func (d *consoleDisplay) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.verbose {
		return
	}
	d.printLocked(d.theme.Styled(d.theme.Dim, msg) + "\n")
}

func (d *consoleDisplay) Print(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printLocked(msg)
}

func (d *consoleDisplay) Notify(body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printLocked(d.theme.Styled(d.theme.Green, d.theme.IconOK) + " " + d.theme.Styled(d.theme.Bold, body) + "\n")
}

func (d *consoleDisplay) Fail(body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.printLocked(d.theme.Styled(d.theme.Red, d.theme.IconFail+" "+body) + "\n")
}

func (d *consoleDisplay) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
	d.tasks = nil
}

// printLocked writes msg above the task block.
func (d *consoleDisplay) printLocked(msg string) {
	d.clearLocked()
	fmt.Fprint(d.out, msg)
	d.drawLocked()
}

func (d *consoleDisplay) clearLocked() {
	if d.drawn > 0 {
		fmt.Fprint(d.out, strings.Repeat(clearLine, d.drawn))
	}
	d.drawn = 0
}

func (d *consoleDisplay) drawLocked() {
	for _, t := range d.tasks {
		fmt.Fprintln(d.out, t.line())
	}
	d.drawn = len(d.tasks)
}

func (d *consoleDisplay) removeLocked(t *consoleTask) {
	for i, cur := range d.tasks {
		if cur == t {
			d.tasks = append(d.tasks[:i], d.tasks[i+1:]...)
			return
		}
	}
}

// consoleTask is guarded by its display's mutex.
// Mutable
type consoleTask struct {
	d       *consoleDisplay
	name    string
	stage   string
	target  string
	percent int
	msg     string
	done    bool
}

func (t *consoleTask) line() string {
	th := t.d.theme
	var sb strings.Builder
	sb.WriteString(th.Styled(th.Cyan, th.IconTask+" ["+t.name+"]"))
	if t.stage != "" {
		sb.WriteString(" " + th.Styled(th.Bold, t.stage))
	}
	if t.target != "" {
		sb.WriteString(" " + th.Styled(th.Dim, t.target))
	}
	if t.percent > 0 {
		fmt.Fprintf(&sb, " %d%%", t.percent)
	}
	if t.msg != "" {
		sb.WriteString(" " + t.msg)
	}
	return sb.String()
}

func (t *consoleTask) Log(msg string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	if !t.d.verbose || t.done {
		return
	}
	t.d.printLocked(fmt.Sprintf("[%s] %s\n", t.name, msg))
}

func (t *consoleTask) SetStage(name string, target string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	if t.done {
		return
	}
	t.d.clearLocked()
	t.stage, t.target = name, target
	t.percent, t.msg = 0, ""
	t.d.drawLocked()
}

func (t *consoleTask) Progress(percent int, message string) {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	if t.done {
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	t.d.clearLocked()
	t.percent, t.msg = percent, message
	t.d.drawLocked()
}

func (t *consoleTask) Done() {
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.d.clearLocked()
	t.d.removeLocked(t)
	if t.d.verbose {
		fmt.Fprintf(t.d.out, "[%s] Done\n", t.name)
	}
	t.d.drawLocked()
}
