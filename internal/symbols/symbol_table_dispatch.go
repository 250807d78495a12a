package symbols

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/funvibe/symtab/internal/value"
)

var (
	supOnce  sync.Once
	supTable [value.NumBuiltinTypes][value.NumBuiltinTypes]value.BuiltinType
)

// buildSupTable fills the promotion table used to combine the built-in
// types of a call's arguments into one dispatch class.
func buildSupTable() {
	for i := 0; i < value.NumBuiltinTypes; i++ {
		for j := 0; j < value.NumBuiltinTypes; j++ {
			it := value.BuiltinType(i)
			jt := value.BuiltinType(j)

			useJ := jt == value.FuncHandle || it == value.Bool ||
				(it.IsArray() &&
					(!jt.IsArray() ||
						(jt.IsInteger() && !it.IsInteger()) ||
						((it == value.Double || it == value.Complex || it == value.Char) &&
							(jt == value.Float || jt == value.FloatComplex))))

			if useJ {
				supTable[i][j] = jt
			} else {
				supTable[i][j] = it
			}
		}
	}
}

// SupType combines two built-in types the way dispatch does.
func SupType(a, b value.BuiltinType) value.BuiltinType {
	if a == value.Unknown || b == value.Unknown {
		return value.Unknown
	}
	supOnce.Do(buildSupTable)
	return supTable[a][b]
}

// DispatchType returns the class used to select a method for a call with
// args, or "" when there are no arguments.
func (r *Registry) DispatchType(args []value.Value) string {
	if len(args) == 0 {
		return ""
	}

	i := 0
	bt := args[0].BuiltinType()
	if bt != value.Unknown {
		for i = 1; i < len(args); i++ {
			bti := args[i].BuiltinType()
			if bti == value.Unknown {
				bt = value.Unknown
				break
			}
			bt = SupType(bt, bti)
		}
	}
	if bt != value.Unknown {
		return bt.ClassName()
	}

	// There's a user-defined class in the argument list. A later class
	// only takes over if it is marked superior to the current one.
	dispatch := args[i].ClassName()
	for _, arg := range args[i+1:] {
		if arg.BuiltinType() != value.Unknown {
			continue
		}
		cname := arg.ClassName()
		if !r.IsSuperiorTo(dispatch, cname) && r.IsSuperiorTo(cname, dispatch) {
			dispatch = cname
		}
	}
	return dispatch
}

// InstallBuiltinDispatch declares that the built-in name also serves as
// the method for class.
func (r *Registry) InstallBuiltinDispatch(name, class string) error {
	fi, ok := r.fcnTable[name]
	if !ok {
		return fmt.Errorf("install_built_in_dispatch: '%s': %w", name, ErrNoSuchFunction)
	}
	if err := fi.InstallBuiltinDispatch(class); err != nil {
		return fmt.Errorf("install_built_in_dispatch: '%s': %w", name, err)
	}
	return nil
}

// SetClassRelationship marks inf inferior to sup. It refuses when sup is
// already inferior to inf; longer cycles are not detected.
func (r *Registry) SetClassRelationship(sup, inf string) bool {
	if r.IsSuperiorTo(inf, sup) {
		r.logger.Warn("class precedence conflict",
			zap.String("superior", sup),
			zap.String("inferior", inf))
		return false
	}
	set, ok := r.classPrecedence[sup]
	if !ok {
		set = make(map[string]struct{})
		r.classPrecedence[sup] = set
	}
	set[inf] = struct{}{}
	return true
}

// IsSuperiorTo reports whether b was explicitly marked inferior to a. The
// relation is not transitive.
func (r *Registry) IsSuperiorTo(a, b string) bool {
	set, ok := r.classPrecedence[a]
	if !ok {
		return false
	}
	_, ok = set[b]
	return ok
}

// AddToParentMap records the parent classes of class, in declaration order.
func (r *Registry) AddToParentMap(class string, parents []string) {
	r.parentMap[class] = append([]string(nil), parents...)
}

// ParentClasses lists the ancestors of class: its own parents first, then
// theirs, each class once.
func (r *Registry) ParentClasses(class string) []string {
	var out []string
	seen := map[string]bool{class: true}
	queue := []string{class}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, p := range r.parentMap[c] {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	return out
}
