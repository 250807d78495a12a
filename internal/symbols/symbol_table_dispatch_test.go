package symbols

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/funvibe/symtab/internal/value"
)

func TestDispatchType(t *testing.T) {
	r := New(Options{})
	r.SetClassRelationship("sparse", "dense")

	dbl := value.NewMatrix(value.Double, 2, 2, 1, 2, 3, 4)
	tests := []struct {
		name string
		args []value.Value
		want string
	}{
		{"empty", nil, ""},
		{"double array with int32 scalar", []value.Value{dbl, value.NewScalar(value.Int32, 3)}, "int32"},
		{"int32 with double", []value.Value{value.NewScalar(value.Int32, 3), dbl}, "int32"},
		{"logical never dominates", []value.Value{value.NewBool(true), dbl}, "double"},
		{"double with single", []value.Value{dbl, value.NewScalar(value.Float, 1)}, "single"},
		{"complex keeps char out", []value.Value{value.NewScalar(value.Complex, 1), value.NewString("x")}, "double"},
		{"function handle wins", []value.Value{dbl, value.NewFuncHandle("sin")}, "function_handle"},
		{"cell over array", []value.Value{dbl, value.NewCell(1, 2)}, "cell"},
		{"object after built-ins", []value.Value{dbl, value.NewObject("dense")}, "dense"},
		{"first object kept", []value.Value{value.NewObject("dense"), value.NewObject("other")}, "dense"},
		{"superior object takes over", []value.Value{value.NewObject("dense"), dbl, value.NewObject("sparse")}, "sparse"},
		{"inferior object ignored", []value.Value{value.NewObject("sparse"), value.NewObject("dense")}, "sparse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.DispatchType(tt.args); got != tt.want {
				t.Errorf("DispatchType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSupTableIsClosed(t *testing.T) {
	for i := 0; i < value.NumBuiltinTypes; i++ {
		for j := 0; j < value.NumBuiltinTypes; j++ {
			a, b := value.BuiltinType(i), value.BuiltinType(j)
			if got := SupType(a, b); got != a && got != b {
				t.Fatalf("SupType(%v, %v) = %v", a, b, got)
			}
		}
	}
	if SupType(value.Double, value.Unknown) != value.Unknown {
		t.Errorf("unknown must propagate")
	}
}

func TestClassPrecedenceAsymmetry(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := New(Options{Logger: zap.New(core)})

	if !r.SetClassRelationship("A", "B") {
		t.Fatalf("first relation refused")
	}
	if r.SetClassRelationship("B", "A") {
		t.Fatalf("reverse relation accepted")
	}
	if !r.IsSuperiorTo("A", "B") || r.IsSuperiorTo("B", "A") {
		t.Fatalf("relation changed by the refused call")
	}
	if logs.FilterMessage("class precedence conflict").Len() != 1 {
		t.Errorf("expected a precedence warning")
	}

	// Only direct relations are recorded.
	r.SetClassRelationship("B", "C")
	if r.IsSuperiorTo("A", "C") {
		t.Errorf("relation must not be transitive")
	}
	// Longer cycles are not detected.
	if !r.SetClassRelationship("C", "A") {
		t.Errorf("three-class cycle should be accepted")
	}
}

func TestParentClasses(t *testing.T) {
	r := New(Options{})
	r.AddToParentMap("c", []string{"b1", "b2"})
	r.AddToParentMap("b1", []string{"a"})
	r.AddToParentMap("b2", []string{"a"})
	r.AddToParentMap("a", []string{"c"})

	got := r.ParentClasses("c")
	want := []string{"b1", "b2", "a"}
	if len(got) != len(want) {
		t.Fatalf("ParentClasses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ParentClasses = %v, want %v", got, want)
		}
	}
}

func TestInstallBuiltinDispatch(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := New(Options{Logger: zap.New(core)})
	size := NewBuiltin("size")
	r.InstallBuiltin(size)

	if err := r.InstallBuiltinDispatch("size", "table"); err != nil {
		t.Fatalf("InstallBuiltinDispatch: %v", err)
	}
	if err := r.InstallBuiltinDispatch("size", "table"); err != nil {
		t.Fatalf("duplicate should only warn: %v", err)
	}
	if got := size.DispatchClasses(); len(got) != 1 {
		t.Errorf("dispatch classes = %v", got)
	}
	if logs.FilterMessage("install_built_in_dispatch: already defined for class").Len() != 1 {
		t.Errorf("expected a duplicate warning")
	}

	if got := r.FindFunction("size", []value.Value{value.NewObject("table")}, true); got != size {
		t.Errorf("built-in should serve as the method, got %+v", got)
	}

	if err := r.InstallBuiltinDispatch("nosuch", "table"); !errors.Is(err, ErrNoSuchFunction) {
		t.Errorf("expected ErrNoSuchFunction, got %v", err)
	}
	if err := r.InstallCmdlineFunction(NewCmdlineFunction("mine", "")); err != nil {
		t.Fatalf("InstallCmdlineFunction: %v", err)
	}
	if err := r.InstallBuiltinDispatch("mine", "table"); !errors.Is(err, ErrNotBuiltin) {
		t.Errorf("expected ErrNotBuiltin, got %v", err)
	}
}
