package symbols

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/timestamp"
	"github.com/funvibe/symtab/internal/value"
)

// Registry is one interpreter's symbol universe: the function cache, the
// scope arena, global variables and the class relations. Nothing here is
// safe for concurrent use; the interpreter owns it from a single goroutine.
type Registry struct {
	id     uuid.UUID
	logger *zap.Logger

	resolver    Resolver
	loader      Loader
	oracle      Oracle
	autoloads   AutoloadIndex
	classes     ClassManager
	breakpoints Breakpoints

	timestampMode timestamp.Mode

	// Function cache entries by full name. An entry is only stored once
	// some lookup through it succeeded.
	fcnTable map[string]*FcnInfo

	// Scope arena. Ids are handed out by nextScope and never reused.
	scopes    map[ScopeID]*Scope
	nextScope ScopeID

	currentScope   ScopeID
	currentContext ContextID

	globals map[string]value.Value

	// classPrecedence maps a class to the classes marked inferior to it.
	classPrecedence map[string]map[string]struct{}

	// parentMap lists the declared parent classes of a class, in order.
	parentMap map[string][]string

	// fatal is the load error that ended the latest lookup, if any.
	fatal error
}

// ID identifies this registry instance in logs and dumps.
func (r *Registry) ID() uuid.UUID { return r.id }

func (r *Registry) Logger() *zap.Logger { return r.logger }

func (r *Registry) CurrentScope() ScopeID { return r.currentScope }

func (r *Registry) CurrentContext() ContextID { return r.currentContext }

// Scope returns the scope table for id, or nil.
func (r *Registry) Scope(id ScopeID) *Scope { return r.scopes[id] }

// TimestampMode reports the ignore_function_time_stamp setting.
func (r *Registry) TimestampMode() string { return r.timestampMode.String() }

// SetTimestampMode changes the setting and returns the previous one.
func (r *Registry) SetTimestampMode(mode string) (string, error) {
	m, err := timestamp.ParseMode(mode)
	if err != nil {
		return r.timestampMode.String(), err
	}
	prev := r.timestampMode
	r.timestampMode = m
	return prev.String(), nil
}

// MarkPrompt and MarkChdir advance the staleness epochs when the oracle
// supports it.
func (r *Registry) MarkPrompt() {
	if m, ok := r.oracle.(epochMarker); ok {
		m.MarkPrompt()
	}
}

func (r *Registry) MarkChdir() {
	if m, ok := r.oracle.(epochMarker); ok {
		m.MarkChdir()
	}
}
