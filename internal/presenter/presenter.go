package presenter

import (
	"io"
	"sync"

	"github.com/park285/Cheese-Video-Analyzer/internal/session"
)

// Presenter writes the rendered view whenever it changes.
type Presenter struct {
	w   io.Writer
	f   *Formatter
	sep string

	mu   sync.Mutex
	last string
}

func New(w io.Writer, f *Formatter) *Presenter {
	return &Presenter{w: w, f: f, sep: "\n"}
}

// Show renders st and writes it only if it differs from the previous view.
func (p *Presenter) Show(st session.State) error {
	if p == nil || p.w == nil {
		return nil
	}
	view := p.f.Render(st)

	p.mu.Lock()
	defer p.mu.Unlock()
	if view == p.last {
		return nil
	}
	p.last = view
	_, err := io.WriteString(p.w, view+p.sep)
	return err
}

// Observer is the subset of the controller the presenter follows.
type Observer interface {
	OnChange(cb session.ChangeCallback) int
	RemoveChangeCallback(id int)
}

// Attach follows every snapshot of o and returns a function that detaches again.
func (p *Presenter) Attach(o Observer) func() {
	id := o.OnChange(func(st session.State) { _ = p.Show(st) })
	return func() { o.RemoveChangeCallback(id) }
}
