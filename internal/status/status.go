// Package status is the single presentation surface shared by every capture.
//
// All writes go through SetPending, SetResult and SetError so that the order
// in which overlapping submissions land is observable through History.
package status

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// PendingText is shown while a submission is in flight.
const PendingText = "Sending..."

// Phase of the display.
type Phase int

const (
	Idle Phase = iota
	Pending
	Showing
	Failed
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Showing:
		return "result"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// Update is one write to the display.
type Update struct {
	Seq   uint64
	ID    string // Invocation that issued the write; empty for session-level messages
	Phase Phase
	Text  string
	At    time.Time
}

// Display holds the current status text. Last write wins.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	seq     uint64
	phase   Phase
	text    string
	history []Update
	pending map[string]int // in-flight invocations by ID

	interactive bool
	spinner     *progressbar.ProgressBar
	stopSpin    chan struct{}
}

// New returns a display writing to out. A spinner is drawn only when out is a terminal.
func New(out io.Writer) *Display {
	d := &Display{out: out, pending: make(map[string]int)}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.interactive = true
	}
	return d
}

// SetPending marks invocation id as sending.
func (d *Display) SetPending(id string) {
	d.apply(id, Pending, PendingText)
}

// SetResult replaces the display with the server's response text.
func (d *Display) SetResult(id, text string) {
	d.apply(id, Showing, text)
}

// SetError replaces the display with a failure message.
func (d *Display) SetError(id, text string) {
	d.apply(id, Failed, text)
}

// SetErrorf is SetError with formatting.
func (d *Display) SetErrorf(id, format string, args ...any) {
	d.SetError(id, fmt.Sprintf(format, args...))
}

func (d *Display) apply(id string, phase Phase, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.phase = phase
	d.text = text
	d.history = append(d.history, Update{Seq: d.seq, ID: id, Phase: phase, Text: text, At: time.Now()})

	if phase == Pending {
		d.pending[id]++
	} else if n, ok := d.pending[id]; ok {
		if n <= 1 {
			delete(d.pending, id)
		} else {
			d.pending[id] = n - 1
		}
	}

	if !d.interactive {
		fmt.Fprintln(d.out, text)
		return
	}

	if phase == Pending {
		d.startSpinner()
		return
	}
	// The spinner owns the line, so clear it before printing and bring it
	// back if another invocation is still waiting.
	d.stopSpinner()
	fmt.Fprintln(d.out, text)
	if len(d.pending) > 0 {
		d.startSpinner()
	}
}

// InFlight counts invocations that are pending and not yet resolved.
func (d *Display) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.pending {
		n += c
	}
	return n
}

// Spinning reports whether the pending spinner is drawn.
func (d *Display) Spinning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spinner != nil
}

// startSpinner assumes d.mu is held.
func (d *Display) startSpinner() {
	if d.spinner != nil {
		return
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(PendingText),
		progressbar.OptionSetWriter(d.out),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	stop := make(chan struct{})
	d.spinner = bar
	d.stopSpin = stop

	go func() {
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				_ = bar.Add(1)
			}
		}
	}()
}

// stopSpinner assumes d.mu is held.
func (d *Display) stopSpinner() {
	if d.spinner == nil {
		return
	}
	close(d.stopSpin)
	_ = d.spinner.Finish()
	d.spinner = nil
	d.stopSpin = nil
}

// Text returns what the display currently shows.
func (d *Display) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// Phase returns the phase of the last write.
func (d *Display) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// History returns a copy of every write in the order it was applied.
func (d *Display) History() []Update {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Update, len(d.history))
	copy(out, d.history)
	return out
}

// Close stops any running spinner.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopSpinner()
	clear(d.pending)
}
