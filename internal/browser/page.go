package browser

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"manifestfill/internal/form"
	"manifestfill/internal/retry"
)

// Selectors locate the entry form's elements.
type Selectors struct {
	OpenTrigger string `yaml:"open_trigger" json:"open_trigger"`
	// Surface is the container captured for failure diagnostics.
	Surface     string `yaml:"surface" json:"surface"`
	TripID      string `yaml:"trip_id" json:"trip_id"`
	ParentTitle string `yaml:"parent_title" json:"parent_title"`
	Vessel      string `yaml:"vessel" json:"vessel"`
	Country     string `yaml:"country" json:"country"`
	Place       string `yaml:"place" json:"place"`
	PortCode    string `yaml:"port_code" json:"port_code"`
	Date        string `yaml:"date" json:"date"`
	Submit      string `yaml:"submit" json:"submit"`
	// Suggestions are the list item selectors tried in order; the first one
	// with visible items wins.
	Suggestions []string `yaml:"suggestions" json:"suggestions"`
}

// DefaultSelectors returns the selectors of the customs documentation page.
func DefaultSelectors() Selectors {
	return Selectors{
		OpenTrigger: `button[data-target="#CreateCaratulaModal"]`,
		Surface:     `#CreateCaratulaModal`,
		TripID:      `#IdentificadorViaje`,
		ParentTitle: `#IdentificadorTituloMadre`,
		Vessel:      `#Buque`,
		Country:     `#CodigoPaisLugarOrigen`,
		Place:       `#LugarOrigen`,
		PortCode:    `#CodigoPuertoEmbarque`,
		Date:        `#FechaEmbarque`,
		Submit:      `input.btn.btn-primary[type="submit"][value="Crear"]`,
		Suggestions: []string{
			`.easy-autocomplete-container li`,
			`ul.ui-autocomplete li`,
			`li[role="option"]`,
		},
	}
}

// Missing returns the names of empty selectors.
func (s Selectors) Missing() []string {
	var missing []string
	for name, v := range map[string]string{
		"open_trigger": s.OpenTrigger,
		"trip_id":      s.TripID,
		"parent_title": s.ParentTitle,
		"vessel":       s.Vessel,
		"country":      s.Country,
		"place":        s.Place,
		"port_code":    s.PortCode,
		"date":         s.Date,
		"submit":       s.Submit,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(s.Suggestions) == 0 {
		missing = append(missing, "suggestions")
	}
	slices.Sort(missing)
	return missing
}

// Page binds the form abstraction to a rod page.
type Page struct {
	page   *rod.Page
	sel    Selectors
	cfg    Config
	logger *zap.Logger
}

// NewPage wraps page. A nil logger disables logging.
func NewPage(page *rod.Page, sel Selectors, cfg Config, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{page: page, sel: sel, cfg: cfg, logger: logger}
}

// Form returns the entry form handles.
func (p *Page) Form() form.Form {
	return form.Form{
		Open:        p.control("open", p.sel.OpenTrigger),
		TripID:      p.control("trip_id", p.sel.TripID),
		ParentTitle: p.control("parent_title", p.sel.ParentTitle),
		Vessel:      p.control("vessel", p.sel.Vessel),
		Place:       p.control("place", p.sel.Place),
		Date:        p.control("date", p.sel.Date),
		Country: form.Target{
			Input: p.control("country", p.sel.Country),
			List:  &suggestionList{page: p, name: "country"},
		},
		PortCode: form.Target{
			Input: p.control("port_code", p.sel.PortCode),
			List:  &suggestionList{page: p, name: "port_code"},
		},
		Submit: p.control("submit", p.sel.Submit),
	}
}

// WaitReady blocks until the open trigger is visible, which happens once the
// operator is logged in and on the documentation page.
func (p *Page) WaitReady(ctx context.Context, timeout time.Duration) error {
	open := p.control("open", p.sel.OpenTrigger)
	_, err := retry.Until(ctx, 500*time.Millisecond, timeout, func(ctx context.Context) (bool, error) {
		return open.Visible(ctx)
	})
	if err != nil {
		return fmt.Errorf("entry trigger %s not visible: %w", p.sel.OpenTrigger, err)
	}
	return nil
}

// Snapshot returns the HTML of the entry surface, or of the whole document
// when the surface selector matches nothing.
func (p *Page) Snapshot(ctx context.Context) (string, error) {
	page := p.page.Context(ctx)
	if p.sel.Surface != "" {
		els, err := page.Elements(p.sel.Surface)
		if err == nil && !els.Empty() {
			return els.First().HTML()
		}
	}
	return page.HTML()
}

func (p *Page) control(name, selector string) *control {
	return &control{page: p, name: name, selector: selector}
}

// control resolves its element on every call. Lookups never wait: a missing
// element is reported as form.ErrNotFound and callers poll.
type control struct {
	page     *Page
	name     string
	selector string
}

func (c *control) Name() string { return c.name }

// element returns the first match bound to a context limited by the action
// timeout. The caller must call cancel.
func (c *control) element(ctx context.Context) (*rod.Element, context.CancelFunc, error) {
	actx, cancel := context.WithTimeout(ctx, c.page.cfg.ActionTimeout())
	els, err := c.page.page.Context(actx).Elements(c.selector)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%s: %w", c.name, err)
	}
	if els.Empty() {
		cancel()
		return nil, nil, fmt.Errorf("%s (%s): %w", c.name, c.selector, form.ErrNotFound)
	}
	return els.First(), cancel, nil
}

func (c *control) Click(ctx context.Context) error {
	el, cancel, err := c.element(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	// A covered element would keep the pointer click waiting until the
	// action timeout runs out.
	if _, err := el.Interactable(); err != nil {
		return c.dispatchClick(ctx, el, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return c.dispatchClick(ctx, el, err)
	}
	return nil
}

// dispatchClick fires the click on the element itself, on a fresh action
// timeout since the rejected pointer click may have used up the first one.
func (c *control) dispatchClick(ctx context.Context, el *rod.Element, cause error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("click %s: %w", c.name, ctx.Err())
	}
	c.page.logger.Debug("Pointer click rejected, dispatching click", zap.String("control", c.name), zap.Error(cause))
	dctx, cancel := context.WithTimeout(ctx, c.page.cfg.ActionTimeout())
	defer cancel()
	if _, err := el.Context(dctx).Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("click %s: %w", c.name, errors.Join(cause, err))
	}
	return nil
}

func (c *control) Clear(ctx context.Context) error {
	el, cancel, err := c.element(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	_, err = el.Eval(`() => {
		this.focus();
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
	}`)
	if err != nil {
		return fmt.Errorf("clear %s: %w", c.name, err)
	}
	return nil
}

func (c *control) Type(ctx context.Context, text string) error {
	el, cancel, err := c.element(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if err := el.Focus(); err != nil {
		return fmt.Errorf("focus %s: %w", c.name, err)
	}
	page := c.page.page.Context(ctx)
	delay := c.page.cfg.TypeDelay()
	for _, r := range text {
		if keyable(r) {
			err = page.Keyboard.Type(input.Key(r))
		} else {
			err = page.InsertText(string(r))
		}
		if err != nil {
			return fmt.Errorf("type into %s: %w", c.name, err)
		}
		if err := retry.Settle(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// keyable reports whether r has a key definition on the US layout.
func keyable(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(" -./", r)
}

func (c *control) Fill(ctx context.Context, text string) error {
	el, cancel, err := c.element(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	_, err = el.Eval(`(v) => {
		this.focus();
		this.value = v;
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`, text)
	if err != nil {
		return fmt.Errorf("fill %s: %w", c.name, err)
	}
	return nil
}

var keys = map[form.Key]input.Key{
	form.KeyArrowDown: input.ArrowDown,
	form.KeyEnter:     input.Enter,
	form.KeyTab:       input.Tab,
}

func (c *control) Press(ctx context.Context, key form.Key) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	el, cancel, err := c.element(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if err := el.Focus(); err != nil {
		return fmt.Errorf("focus %s: %w", c.name, err)
	}
	if err := c.page.page.Context(ctx).Keyboard.Type(k); err != nil {
		return fmt.Errorf("press %s on %s: %w", key, c.name, err)
	}
	return nil
}

func (c *control) ScrollIntoView(ctx context.Context) error {
	el, cancel, err := c.element(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return el.ScrollIntoView()
}

func (c *control) Visible(ctx context.Context) (bool, error) {
	el, cancel, err := c.element(ctx)
	if errors.Is(err, form.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer cancel()
	return el.Visible()
}

func (c *control) Enabled(ctx context.Context) (bool, error) {
	el, cancel, err := c.element(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()
	disabled, err := el.Property("disabled")
	if err != nil {
		return false, err
	}
	return !disabled.Bool(), nil
}

func (c *control) SubmitForm(ctx context.Context) error {
	el, cancel, err := c.element(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	res, err := el.Eval(`() => {
		const f = this.closest('form');
		if (!f) return false;
		if (f.requestSubmit) {
			f.requestSubmit(this.type === 'submit' ? this : undefined);
		} else {
			f.submit();
		}
		return true;
	}`)
	if err != nil {
		return fmt.Errorf("submit form of %s: %w", c.name, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("%s has no enclosing form", c.name)
	}
	return nil
}

// suggestionList probes the configured container shapes in order.
type suggestionList struct {
	page *Page
	name string
}

func (l *suggestionList) Suggestions(ctx context.Context) form.Probe {
	actx, cancel := context.WithTimeout(ctx, l.page.cfg.ActionTimeout())
	defer cancel()
	page := l.page.page.Context(actx)

	var lastErr error
	for _, sel := range l.page.sel.Suggestions {
		els, err := page.Elements(sel)
		if err != nil {
			lastErr = fmt.Errorf("%s suggestions %s: %w", l.name, sel, err)
			continue
		}
		var out []form.Suggestion
		for _, el := range els {
			visible, err := el.Visible()
			if err != nil || !visible {
				continue
			}
			text, err := el.Text()
			if err != nil {
				lastErr = err
				continue
			}
			item := el
			out = append(out, form.NewSuggestion(strings.TrimSpace(text), len(out), func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, l.page.cfg.ActionTimeout())
				defer cancel()
				return item.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
			}))
		}
		if len(out) > 0 {
			return form.Probe{Suggestions: out}
		}
	}
	return form.Probe{Err: lastErr}
}
