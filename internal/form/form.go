// Package form describes the live entry form the driver operates against.
// The core packages (resolver, confirm, driver) only see these interfaces;
// internal/browser binds them to a rod page and formtest to an in-memory fake.
package form

import (
	"context"
	"errors"
)

// Key is a named keyboard key the core can send to a control.
type Key string

const (
	KeyArrowDown Key = "ArrowDown"
	KeyEnter     Key = "Enter"
	KeyTab       Key = "Tab"
)

// ErrNotFound is returned by controls whose element is not currently in the page.
var ErrNotFound = errors.New("element not found")

// Control is an addressable input element. Implementations resolve the
// underlying element on every call, so a control survives re-rendering.
type Control interface {
	// Name identifies the control in logs and error messages.
	Name() string
	Click(ctx context.Context) error
	// Clear empties the control's value.
	Clear(ctx context.Context) error
	// Type sends text one character at a time as real key events.
	Type(ctx context.Context, text string) error
	// Fill sets the whole value at once.
	Fill(ctx context.Context, text string) error
	Press(ctx context.Context, key Key) error
	ScrollIntoView(ctx context.Context) error
	// Visible reports false without error when the element is absent.
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	// SubmitForm submits the enclosing form natively, bypassing click handlers.
	SubmitForm(ctx context.Context) error
}

// Suggestion is one visible entry of an open suggestion list.
type Suggestion struct {
	Label string
	Index int

	pick func(ctx context.Context) error
}

// NewSuggestion builds a suggestion whose Pick runs pick.
func NewSuggestion(label string, index int, pick func(ctx context.Context) error) Suggestion {
	return Suggestion{Label: label, Index: index, pick: pick}
}

// Pick selects the suggestion in the page.
func (s Suggestion) Pick(ctx context.Context) error {
	if s.pick == nil {
		return errors.New("suggestion has no pick action")
	}
	return s.pick(ctx)
}

// Probe is the result of one suggestion-list lookup. Err records why the
// lookup failed (detached node, missing container); callers treat a failed
// probe as zero suggestions but may still log it.
type Probe struct {
	Suggestions []Suggestion
	Err         error
}

// OK reports whether the probe completed without error.
func (p Probe) OK() bool { return p.Err == nil }

// SuggestionList exposes the dynamic list attached to an autocomplete input.
type SuggestionList interface {
	// Suggestions returns the currently visible entries in display order.
	Suggestions(ctx context.Context) Probe
}

// Target pairs an autocomplete input with its suggestion list.
type Target struct {
	Input Control
	List  SuggestionList
}

// Form holds every handle the driver needs for one entry surface.
type Form struct {
	// Open reveals the entry surface (the "add" button of the modal).
	Open Control

	// TripID doubles as the identity probe: while it is visible the
	// creation surface is still open.
	TripID      Control
	ParentTitle Control
	Vessel      Control
	Place       Control
	Date        Control

	Country  Target
	PortCode Target

	Submit Control
}

// Snapshotter captures the current markup of the entry surface.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
}
