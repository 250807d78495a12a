package symbols

import (
	"strconv"
	"strings"
	"time"

	"github.com/funvibe/symtab/internal/value"
)

// ScopeID identifies a scope table in the registry's arena.
type ScopeID int

// ContextID indexes a variable's value stack; each active invocation of a
// recursive function gets its own context.
type ContextID int

const (
	GlobalScope ScopeID = 0
	TopScope    ScopeID = 1
	NoScope     ScopeID = -1

	NoContext ContextID = -1
)

// Category says where a callable came from. It doubles as the precedence
// slot of the function cache entry that holds it.
type Category uint8

const (
	Undefined Category = iota
	Subfunction
	PrivateFunction
	ClassMethod
	ClassConstructor
	CommandLine
	Autoload
	PathFunction
	Package
	BuiltIn
)

var categoryNames = [...]string{
	Undefined:        "undefined",
	Subfunction:      "subfunction",
	PrivateFunction:  "private function",
	ClassMethod:      "class method",
	ClassConstructor: "class constructor",
	CommandLine:      "command-line function",
	Autoload:         "autoload function",
	PathFunction:     "function on path",
	Package:          "package",
	BuiltIn:          "built-in function",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "Category(" + strconv.Itoa(int(c)) + ")"
}

// Function is a loaded callable. The loader fills in the file-derived
// fields; the registry assigns the category, scope and nesting links when
// it adopts the function into a cache slot.
type Function struct {
	Name          string
	Package       string
	Category      Category
	File          string
	Dir           string
	DispatchClass string
	CanonicalName string
	PrivateClass  string
	Params        []string
	Outputs       []string
	Text          string

	TimeParsed  time.Time
	TimeChecked time.Time

	// Relative is set when the file was found through a relative search
	// path element, System when it lives under the installation tree.
	Relative bool
	System   bool

	ClassdefConstructor bool
	SuperClasses        []string
	Script              bool

	// Subfunctions and Nested are populated by the loader for files that
	// define more than one function; the registry installs them.
	Subfunctions []*Function
	Nested       []*Function

	scope       ScopeID
	parentScope ScopeID
	nested      bool
	private     bool
	locked      bool
	dispatch    []string
	contexts    []ContextID
}

// NewBuiltin returns a built-in function; it has no file and never goes
// stale.
func NewBuiltin(name string) *Function {
	return &Function{Name: name, Category: BuiltIn, scope: NoScope, parentScope: NoScope}
}

// NewCmdlineFunction returns a function typed in at the prompt.
func NewCmdlineFunction(name, text string, params ...string) *Function {
	return &Function{
		Name:        name,
		Category:    CommandLine,
		Text:        text,
		Params:      params,
		scope:       NoScope,
		parentScope: NoScope,
	}
}

func (f *Function) BuiltinType() value.BuiltinType { return value.Unknown }
func (f *Function) ClassName() string              { return "function" }
func (f *Function) String() string                 { return f.FullName() }

// FullName is the package-qualified name.
func (f *Function) FullName() string {
	if f.Package == "" {
		return f.Name
	}
	return f.Package + "." + f.Name
}

func (f *Function) Scope() ScopeID       { return f.scope }
func (f *Function) ParentScope() ScopeID { return f.parentScope }
func (f *Function) IsNested() bool       { return f.nested }
func (f *Function) IsSubfunction() bool  { return f.Category == Subfunction }
func (f *Function) IsPrivate() bool      { return f.private }
func (f *Function) IsLocked() bool       { return f.locked }
func (f *Function) IsBuiltin() bool      { return f.Category == BuiltIn }

// Lock protects the function from non-forced clears.
func (f *Function) Lock()   { f.locked = true }
func (f *Function) Unlock() { f.locked = false }

// MarkPrivate flags the function as private, owned by class when the
// private directory lives inside an @class directory.
func (f *Function) MarkPrivate(class string) {
	f.private = true
	f.PrivateClass = class
}

// MarkUpToDate records that the backing file was checked at t.
func (f *Function) MarkUpToDate(t time.Time) { f.TimeChecked = t }

// HandlesDispatchClass reports whether a built-in declared that it
// implements methods for class.
func (f *Function) HandlesDispatchClass(class string) bool {
	for _, c := range f.dispatch {
		if c == class {
			return true
		}
	}
	return false
}

func (f *Function) PushDispatchClass(class string) {
	f.dispatch = append(f.dispatch, class)
}

// DispatchClasses lists the classes a built-in handles.
func (f *Function) DispatchClasses() []string {
	return append([]string(nil), f.dispatch...)
}

// ActiveContext is the context of the innermost running invocation, or
// NoContext when the function is not running.
func (f *Function) ActiveContext() ContextID {
	if len(f.contexts) == 0 {
		return NoContext
	}
	return f.contexts[len(f.contexts)-1]
}

// EnterContext and ExitContext bracket one invocation.
func (f *Function) EnterContext(ctx ContextID) { f.contexts = append(f.contexts, ctx) }

func (f *Function) ExitContext() {
	if len(f.contexts) > 0 {
		f.contexts = f.contexts[:len(f.contexts)-1]
	}
}

// SymbolFlags is the storage class of a variable.
type SymbolFlags uint8

const (
	Local SymbolFlags = 1 << iota
	Automatic
	Formal
	Hidden
	Inherited
	Global
	Persistent
)

func (fl SymbolFlags) letters() string {
	var b strings.Builder
	for _, p := range []struct {
		flag SymbolFlags
		c    byte
	}{{Local, 'l'}, {Automatic, 'a'}, {Formal, 'f'}, {Hidden, 'h'}, {Inherited, 'i'}, {Global, 'g'}, {Persistent, 'p'}} {
		if fl&p.flag != 0 {
			b.WriteByte(p.c)
		}
	}
	return b.String()
}

// SymbolRecord is a variable in one scope. Records are shared by pointer
// between a nested function and its nest parent.
type SymbolRecord struct {
	name      string
	flags     SymbolFlags
	scope     ScopeID
	values    []value.Value
	fcn       *Function
	fcnCached bool
	registry  *Registry
}

func newSymbolRecord(r *Registry, scope ScopeID, name string) *SymbolRecord {
	return &SymbolRecord{name: name, flags: Local, scope: scope, registry: r}
}

func (sr *SymbolRecord) Name() string        { return sr.name }
func (sr *SymbolRecord) Flags() SymbolFlags  { return sr.flags }
func (sr *SymbolRecord) DeclScope() ScopeID  { return sr.scope }
func (sr *SymbolRecord) IsLocal() bool       { return sr.flags&Local != 0 }
func (sr *SymbolRecord) IsAutomatic() bool   { return sr.flags&Automatic != 0 }
func (sr *SymbolRecord) IsFormal() bool      { return sr.flags&Formal != 0 }
func (sr *SymbolRecord) IsHidden() bool      { return sr.flags&Hidden != 0 }
func (sr *SymbolRecord) IsInherited() bool   { return sr.flags&Inherited != 0 }
func (sr *SymbolRecord) IsGlobal() bool      { return sr.flags&Global != 0 }
func (sr *SymbolRecord) IsPersistent() bool  { return sr.flags&Persistent != 0 }
func (sr *SymbolRecord) mark(f SymbolFlags)  { sr.flags |= f }
func (sr *SymbolRecord) unmark(f SymbolFlags) { sr.flags &^= f }

func (sr *SymbolRecord) setCurrFcn(fn *Function) { sr.fcn = fn }

func (sr *SymbolRecord) activeContext() ContextID {
	if sr.fcn != nil {
		if ctx := sr.fcn.ActiveContext(); ctx != NoContext {
			return ctx
		}
	}
	return sr.registry.currentContext
}

// Varval returns the value visible in the active context, or nil.
func (sr *SymbolRecord) Varval() value.Value {
	switch {
	case sr.IsGlobal():
		return sr.registry.globals[sr.name]
	case sr.IsPersistent():
		if s := sr.registry.scopes[sr.scope]; s != nil {
			return s.persistent[sr.name]
		}
		return nil
	}
	ctx := int(sr.activeContext())
	if ctx < 0 || ctx >= len(sr.values) {
		return nil
	}
	return sr.values[ctx]
}

// IsDefined reports whether the record currently holds a value.
func (sr *SymbolRecord) IsDefined() bool { return sr.Varval() != nil }

// Assign stores v in the active context, or in global/persistent storage.
func (sr *SymbolRecord) Assign(v value.Value) {
	switch {
	case sr.IsGlobal():
		sr.registry.globals[sr.name] = v
		return
	case sr.IsPersistent():
		if s := sr.registry.scopes[sr.scope]; s != nil {
			s.persistent[sr.name] = v
		}
		return
	}
	ctx := int(sr.activeContext())
	if ctx < 0 {
		ctx = 0
	}
	for len(sr.values) <= ctx {
		sr.values = append(sr.values, nil)
	}
	sr.values[ctx] = v
}

// invalidate drops local storage without touching global or persistent
// tables.
func (sr *SymbolRecord) invalidate() {
	sr.values = nil
	sr.fcnCached = false
}

// clear empties the record when it is cleared from its declaring scope.
// A global record stops being global. A persistent value stays in the
// scope's persistent table.
func (sr *SymbolRecord) clear(sid ScopeID) {
	if sr.IsHidden() || sr.IsInherited() || sid != sr.scope {
		return
	}
	if sr.IsGlobal() {
		sr.unmark(Global)
	}
	if sr.IsPersistent() {
		sr.unmark(Persistent)
	}
	sr.values = nil
	sr.fcnCached = false
}

func (sr *SymbolRecord) pushContext(sid ScopeID) {
	if sr.IsGlobal() || sr.IsPersistent() || sid != sr.scope {
		return
	}
	sr.values = append(sr.values, nil)
}

// popContext returns the remaining stack depth; records at zero are
// dropped by the scope.
func (sr *SymbolRecord) popContext(sid ScopeID) int {
	if sr.IsGlobal() || sr.IsPersistent() || sid != sr.scope {
		return 1
	}
	if len(sr.values) > 0 {
		sr.values = sr.values[:len(sr.values)-1]
	}
	return len(sr.values)
}

// Find resolves the record the way an identifier in an expression is
// resolved: its value if defined, otherwise the function of the same name.
// The function cache entry is reached by name, never held.
func (sr *SymbolRecord) Find(args []value.Value) value.Value {
	if sr.IsGlobal() {
		return sr.registry.GlobalVarval(sr.name)
	}
	if v := sr.Varval(); v != nil {
		return v
	}
	if sr.fcnCached {
		if fi, ok := sr.registry.fcnTable[sr.name]; ok {
			return fnValue(fi.Find(args, true))
		}
		sr.fcnCached = false
	}
	fn := sr.registry.FindFunction(sr.name, args, true)
	if fn != nil {
		sr.fcnCached = true
		return fn
	}
	return nil
}

// fnValue avoids handing out a typed nil inside a value.Value.
func fnValue(fn *Function) value.Value {
	if fn == nil {
		return nil
	}
	return fn
}
