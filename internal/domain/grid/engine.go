package grid

import "sort"

// TransitionRequest is a proposed change of one field of one row
type TransitionRequest struct {
	Row      *Row
	Field    string
	Proposed any
	Previous any
}

// TransitionContext gives guards read access to data outside the edited row
type TransitionContext struct {
	// Dependent is the detail collection; it may not be loaded
	Dependent *DependentCollection
	// Selected is the currently selected master identity
	Selected Identity
	// Lookup finds sibling rows of the master surface
	Lookup func(id Identity) (*Row, bool)
}

// DependentLoadedFor reports whether the dependent collection holds the
// detail rows of the given master row
func (c TransitionContext) DependentLoadedFor(id Identity) bool {
	return c.Dependent != nil && c.Dependent.IsLoadedFor(id)
}

// Decision is the engine's verdict on a transition
type Decision struct {
	Accepted             bool
	RequiresConfirmation bool
	// Replacement holds extra field values set on the edited row when the
	// transition takes effect
	Replacement Values
	// Cascade is applied to the dependent collection when the transition
	// takes effect; nil means no cascade
	Cascade *Cascade
	// Reason is a machine-readable code for rejections
	Reason       string
	Message      string
	ConfirmTitle string
}

// Accept returns an accepted decision without side effects
func Accept() Decision {
	return Decision{Accepted: true}
}

// Reject returns a rejected decision
func Reject(reason, message string) Decision {
	return Decision{Accepted: false, Reason: reason, Message: message}
}

// Confirm returns an accepted decision that takes effect only after the user
// confirms
func Confirm(title, message string) Decision {
	return Decision{Accepted: true, RequiresConfirmation: true, ConfirmTitle: title, Message: message}
}

// WithReplacement sets the replacement values
func (d Decision) WithReplacement(values Values) Decision {
	d.Replacement = values
	return d
}

// WithCascade sets the cascade
func (d Decision) WithCascade(c *Cascade) Decision {
	d.Cascade = c
	return d
}

// Guard is one rule of a field's transition table
type Guard struct {
	Name string
	When func(req TransitionRequest, ctx TransitionContext) bool
	Then func(req TransitionRequest, ctx TransitionContext) Decision
}

// Engine evaluates field transitions against ordered guards
type Engine struct {
	guards map[string][]Guard
}

// NewEngine creates an engine without rules
func NewEngine() *Engine {
	return &Engine{guards: make(map[string][]Guard)}
}

// Register appends guards for field. Guards are evaluated in registration
// order and the first matching one decides.
func (e *Engine) Register(field string, guards ...Guard) {
	e.guards[field] = append(e.guards[field], guards...)
}

// Watches reports whether field has any guard
func (e *Engine) Watches(field string) bool {
	return len(e.guards[field]) > 0
}

// Fields returns the watched fields in name order
func (e *Engine) Fields() []string {
	fields := make([]string, 0, len(e.guards))
	for f := range e.guards {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Guards returns the guard names for field in evaluation order
func (e *Engine) Guards(field string) []string {
	names := make([]string, 0, len(e.guards[field]))
	for _, g := range e.guards[field] {
		names = append(names, g.Name)
	}
	return names
}

// EvaluateTransition returns the decision of the first matching guard, or an
// accepted decision without cascade when none matches.
func (e *Engine) EvaluateTransition(req TransitionRequest, ctx TransitionContext) Decision {
	for _, g := range e.guards[req.Field] {
		if g.When == nil || g.When(req, ctx) {
			return g.Then(req, ctx)
		}
	}
	return Accept()
}
