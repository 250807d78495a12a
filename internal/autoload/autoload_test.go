package autoload

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMap(t *testing.T) {
	src := map[string]string{"foo": "/lib/foo.m"}
	m := NewMap(src)
	src["bar"] = "/lib/bar.m"

	assert.Equal(t, "/lib/foo.m", m.Lookup("foo"))
	assert.Empty(t, m.Lookup("bar"), "NewMap must copy its input")

	m.Add("bar", "/lib/bar.oct")
	m.Add("foo", "/other/foo.m")
	want := []Entry{{"bar", "/lib/bar.oct"}, {"foo", "/other/foo.m"}}
	if diff := cmp.Diff(want, m.Entries()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, m.Remove("foo"))
	assert.False(t, m.Remove("foo"))
	assert.Equal(t, 1, m.Len())
}

func TestChain(t *testing.T) {
	first := NewMap(map[string]string{"a": "/first/a.m"})
	second := NewMap(map[string]string{"a": "/second/a.m", "b": "/second/b.m"})
	c := Chain{nil, first, second}

	assert.Equal(t, "/first/a.m", c.Lookup("a"))
	assert.Equal(t, "/second/b.m", c.Lookup("b"))
	assert.Empty(t, c.Lookup("c"))
}

func TestSQLiteIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "autoload.db")

	idx, err := Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, path, idx.Path())
	assert.Empty(t, idx.List())

	require.NoError(t, idx.Add(ctx, "solve", "/pkg/solve.m"))
	require.NoError(t, idx.Add(ctx, "fft2", "/pkg/fft2.oct"))
	require.NoError(t, idx.Add(ctx, "solve", "/pkg2/solve.m"))
	assert.Equal(t, "/pkg2/solve.m", idx.Lookup("solve"))
	require.Error(t, idx.Add(ctx, "", "/x.m"))

	removed, err := idx.Remove(ctx, "fft2")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = idx.Remove(ctx, "fft2")
	require.NoError(t, err)
	assert.False(t, removed)
	require.NoError(t, idx.Close())

	reopened, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	if diff := cmp.Diff([]Entry{{"solve", "/pkg2/solve.m"}}, reopened.List()); diff != "" {
		t.Errorf("persisted entries mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, reopened.Lookup("fft2"))
}
