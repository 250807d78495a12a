package symbols

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/symtab/internal/value"
)

func TestDumpAll(t *testing.T) {
	r := New(Options{})
	r.TopLevelAssign("x", value.NewScalar(value.Double, 1))
	r.GlobalAssign("g", value.NewString("hi"))
	r.InstallBuiltin(NewBuiltin("sin"))
	require.NoError(t, r.InstallCmdlineFunction(NewCmdlineFunction("foo", "")))

	var b strings.Builder
	require.NoError(t, r.DumpAll(&b))
	out := b.String()

	assert.Contains(t, out, "*** symbol table "+r.ID().String()+" (current scope 1, context 0)")
	assert.Contains(t, out, "*** dumping global symbol table\n\n  g \"hi\"\n")
	assert.Contains(t, out, "*** dumping symbol table scope 1 (top scope)")
	assert.Contains(t, out, "    x [l] 1\n")
	assert.Contains(t, out, "*** dumping globally visible functions from symbol table")
	assert.Contains(t, out, "  foo [c]\n")
	assert.Contains(t, out, "  sin [b]\n")
}

func TestDumpScopeListsSubfunctions(t *testing.T) {
	env := newFakeEnv()
	env.onPath("main", "/work/main.m").build = func(fn *Function) {
		fn.Subfunctions = []*Function{{Name: "helper"}}
	}
	r := env.registry(t)
	main := r.FindFunction("main", nil, true)
	require.NotNil(t, main)

	var b strings.Builder
	require.NoError(t, r.Dump(&b, main.Scope()))
	assert.Contains(t, b.String(), "  subfunctions defined in this scope:\n    helper\n")

	b.Reset()
	require.NoError(t, r.DumpFunctions(&b))
	assert.Contains(t, b.String(), "  main []\n    function from path: /work/main.m\n")
	assert.Contains(t, b.String(), "    subfunction: /work/main.m [")
}

func TestCleanupLeavesUsableRegistry(t *testing.T) {
	r := New(Options{})
	fn := &Function{Name: "f"}
	id := r.AllocScope(fn, "")
	require.NoError(t, r.SetScope(id))
	require.NoError(t, r.Assign("x", value.NewScalar(value.Double, 1)))
	r.GlobalAssign("g", value.NewScalar(value.Double, 2))
	r.InstallBuiltin(NewBuiltin("sin"))

	r.Cleanup()

	assert.Equal(t, TopScope, r.CurrentScope())
	assert.Equal(t, []ScopeID{GlobalScope, TopScope}, r.Scopes())
	assert.Nil(t, r.GlobalVarval("g"))
	assert.Nil(t, r.BuiltinFind("sin"))
	require.NoError(t, r.Assign("y", value.NewScalar(value.Double, 3)))
	assert.Equal(t, "3", r.Varval("y").String())
}
