// Package formtest provides an in-memory form.Form for tests. Every action is
// appended to the page log as "<control>.<action>[:<arg>]".
package formtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"manifestfill/internal/form"
)

// Page owns the shared action log of a fake form.
type Page struct {
	mu  sync.Mutex
	log []string

	controls map[string]*Control
	lists    map[string]*List

	// HTML is returned by Snapshot.
	HTML string
}

// NewPage returns an empty fake page.
func NewPage() *Page {
	return &Page{
		controls: make(map[string]*Control),
		lists:    make(map[string]*List),
	}
}

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, fmt.Sprintf(format, args...))
}

// Log returns a copy of the recorded actions.
func (p *Page) Log() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.log))
	copy(out, p.log)
	return out
}

// Filter returns the recorded actions starting with prefix.
func (p *Page) Filter(prefix string) []string {
	var out []string
	for _, entry := range p.Log() {
		if strings.HasPrefix(entry, prefix) {
			out = append(out, entry)
		}
	}
	return out
}

// Snapshot implements form.Snapshotter.
func (p *Page) Snapshot(context.Context) (string, error) {
	return p.HTML, nil
}

// Control returns (creating if needed) the control named name.
func (p *Page) Control(name string) *Control {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.controls[name]; ok {
		return c
	}
	c := &Control{page: p, name: name, Errs: make(map[string]error)}
	p.controls[name] = c
	return c
}

// List returns (creating if needed) the suggestion list named name.
func (p *Page) List(name string) *List {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.lists[name]; ok {
		return l
	}
	l := &List{page: p, name: name}
	p.lists[name] = l
	return l
}

// Target returns a form.Target backed by the control and list named name.
func (p *Page) Target(name string) form.Target {
	l := p.List(name)
	l.input = p.Control(name)
	return form.Target{Input: l.input, List: l}
}

// Control is a fake form.Control.
type Control struct {
	page *Page
	name string

	mu       sync.Mutex
	value    string
	hidden   bool
	disabled bool

	// Errs maps an action name ("click", "type", ...) to the error it returns.
	Errs map[string]error

	OnClick  func()
	OnPress  func(form.Key)
	OnSubmit func()
	OnType   func(text string)
	OnScroll func()
}

var _ form.Control = (*Control)(nil)

func (c *Control) Name() string { return c.name }

// Value returns the current value of the control.
func (c *Control) Value() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// SetValue sets the value without logging.
func (c *Control) SetValue(v string) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
}

// SetHidden toggles visibility.
func (c *Control) SetHidden(hidden bool) {
	c.mu.Lock()
	c.hidden = hidden
	c.mu.Unlock()
}

// SetDisabled toggles the enabled state.
func (c *Control) SetDisabled(disabled bool) {
	c.mu.Lock()
	c.disabled = disabled
	c.mu.Unlock()
}

func (c *Control) fail(action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Errs[action]
}

func (c *Control) Click(context.Context) error {
	if err := c.fail("click"); err != nil {
		return err
	}
	c.page.record("%s.click", c.name)
	if c.OnClick != nil {
		c.OnClick()
	}
	return nil
}

func (c *Control) Clear(context.Context) error {
	if err := c.fail("clear"); err != nil {
		return err
	}
	c.page.record("%s.clear", c.name)
	c.SetValue("")
	return nil
}

func (c *Control) Type(_ context.Context, text string) error {
	if err := c.fail("type"); err != nil {
		return err
	}
	c.page.record("%s.type:%s", c.name, text)
	c.mu.Lock()
	c.value += text
	c.mu.Unlock()
	if c.OnType != nil {
		c.OnType(text)
	}
	return nil
}

func (c *Control) Fill(_ context.Context, text string) error {
	if err := c.fail("fill"); err != nil {
		return err
	}
	c.page.record("%s.fill:%s", c.name, text)
	c.SetValue(text)
	return nil
}

func (c *Control) Press(_ context.Context, key form.Key) error {
	if err := c.fail("press"); err != nil {
		return err
	}
	c.page.record("%s.press:%s", c.name, key)
	if c.OnPress != nil {
		c.OnPress(key)
	}
	return nil
}

func (c *Control) ScrollIntoView(context.Context) error {
	if err := c.fail("scroll"); err != nil {
		return err
	}
	c.page.record("%s.scroll", c.name)
	if c.OnScroll != nil {
		c.OnScroll()
	}
	return nil
}

func (c *Control) Visible(context.Context) (bool, error) {
	if err := c.fail("visible"); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.hidden, nil
}

func (c *Control) Enabled(context.Context) (bool, error) {
	if err := c.fail("enabled"); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disabled, nil
}

func (c *Control) SubmitForm(context.Context) error {
	if err := c.fail("submitform"); err != nil {
		return err
	}
	c.page.record("%s.submitform", c.name)
	if c.OnSubmit != nil {
		c.OnSubmit()
	}
	return nil
}

// List is a fake form.SuggestionList. Picking an entry sets the value of the
// attached input.
type List struct {
	page  *Page
	name  string
	input *Control

	mu     sync.Mutex
	labels []string
	err    error
}

var _ form.SuggestionList = (*List)(nil)

// SetLabels sets the visible entries in display order.
func (l *List) SetLabels(labels ...string) {
	l.mu.Lock()
	l.labels = append([]string(nil), labels...)
	l.mu.Unlock()
}

// SetErr makes every probe fail with err.
func (l *List) SetErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *List) Suggestions(context.Context) form.Probe {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return form.Probe{Err: l.err}
	}
	out := make([]form.Suggestion, 0, len(l.labels))
	for i, label := range l.labels {
		label := label
		out = append(out, form.NewSuggestion(label, i, func(context.Context) error {
			l.page.record("%s.pick:%s", l.name, label)
			if l.input != nil {
				l.input.SetValue(label)
			}
			return nil
		}))
	}
	return form.Probe{Suggestions: out}
}

// Control names used by NewForm.
const (
	NameOpen        = "open"
	NameTripID      = "tripid"
	NameParentTitle = "title"
	NameVessel      = "vessel"
	NamePlace       = "place"
	NameDate        = "date"
	NameCountry     = "country"
	NamePortCode    = "portcode"
	NameSubmit      = "submit"
)

// NewForm wires a complete happy-path form: clicking Open reveals the trip-id
// control and clicking Submit hides it again.
func NewForm() (*Page, form.Form) {
	p := NewPage()
	tripID := p.Control(NameTripID)
	tripID.SetHidden(true)

	open := p.Control(NameOpen)
	open.OnClick = func() { tripID.SetHidden(false) }

	submit := p.Control(NameSubmit)
	submit.OnClick = func() { tripID.SetHidden(true) }

	f := form.Form{
		Open:        open,
		TripID:      tripID,
		ParentTitle: p.Control(NameParentTitle),
		Vessel:      p.Control(NameVessel),
		Place:       p.Control(NamePlace),
		Date:        p.Control(NameDate),
		Country:     p.Target(NameCountry),
		PortCode:    p.Target(NamePortCode),
		Submit:      submit,
	}
	return p, f
}
