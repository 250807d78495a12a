package utils

import "testing"

func TestFunctionName(t *testing.T) {
	tests := map[string]string{
		"/lib/foo.m":        "foo",
		"/lib/@cls/bar.oct": "bar",
		"baz.mex":           "baz",
		"/lib/notes.txt":    "notes.txt",
	}
	for path, want := range tests {
		if got := FunctionName(path); got != want {
			t.Errorf("FunctionName(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestClassAndPackageDirs(t *testing.T) {
	if cls, ok := ClassFromDir("/lib/@polygon"); !ok || cls != "polygon" {
		t.Errorf("ClassFromDir = %q, %v", cls, ok)
	}
	if _, ok := ClassFromDir("/lib/@"); ok {
		t.Error("bare @ is not a class directory")
	}
	if pkg, ok := PackageFromDir("/lib/+geom"); !ok || pkg != "geom" {
		t.Errorf("PackageFromDir = %q, %v", pkg, ok)
	}
	if !IsPrivateDir("/lib/private") || IsPrivateDir("/lib/privately") {
		t.Error("IsPrivateDir mismatch")
	}
}

func TestSplitQualified(t *testing.T) {
	pkg, name := SplitQualified("geom.shapes.area")
	if pkg != "geom.shapes" || name != "area" {
		t.Errorf("SplitQualified = %q, %q", pkg, name)
	}
	pkg, name = SplitQualified("area")
	if pkg != "" || name != "area" {
		t.Errorf("SplitQualified = %q, %q", pkg, name)
	}
	if segs := PackageSegments("geom.shapes"); len(segs) != 2 || segs[1] != "shapes" {
		t.Errorf("PackageSegments = %v", segs)
	}
}

func TestIsUnder(t *testing.T) {
	tests := []struct {
		path, root string
		want       bool
	}{
		{"/opt/octave/m/sin.m", "/opt/octave", true},
		{"/opt/octave", "/opt/octave", true},
		{"/opt/octave2/x.m", "/opt/octave", false},
		{"/work/x.m", "", false},
	}
	for _, tt := range tests {
		if got := IsUnder(tt.path, tt.root); got != tt.want {
			t.Errorf("IsUnder(%q, %q) = %v, want %v", tt.path, tt.root, got, tt.want)
		}
	}
}
