package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode"
)

// Kind is the shape of a source file.
type Kind int

const (
	KindScript Kind = iota
	KindFunction
	KindClassdef
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindClassdef:
		return "classdef"
	default:
		return "script"
	}
}

// FuncDecl is one function definition found in a file.
type FuncDecl struct {
	Name    string
	Params  []string
	Outputs []string
	Line    int
	EndLine int
	Text    string
	Nested  []*FuncDecl
}

// ClassDecl is the classdef block of a file.
type ClassDecl struct {
	Name       string
	Parents    []string
	Properties []string
	Methods    []*FuncDecl
	Line       int
}

// File is the parsed outline of one source file: which functions it
// defines and how they nest. Bodies are not parsed.
type File struct {
	Kind Kind
	// Functions holds the top-level functions in order. For function files
	// the first one is the primary function and the rest are subfunctions.
	// For classdef files these are the local functions after the class.
	Functions []*FuncDecl
	Class     *ClassDecl
	Source    string
}

// SyntaxError reports a malformed outline.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var openers = map[string]bool{
	"if": true, "for": true, "parfor": true, "while": true, "switch": true,
	"try": true, "do": true, "unwind_protect": true, "spmd": true,
	"function": true, "classdef": true,
}

// Blocks that only open a block directly inside classdef.
var classBlocks = map[string]bool{
	"methods": true, "properties": true, "events": true, "enumeration": true,
}

var closers = map[string]bool{
	"end": true, "endfunction": true, "endif": true, "endfor": true,
	"endparfor": true, "endwhile": true, "endswitch": true,
	"end_try_catch": true, "end_unwind_protect": true, "until": true,
	"endspmd": true, "endclassdef": true, "endmethods": true,
	"endproperties": true, "endevents": true, "endenumeration": true,
}

type statement struct {
	word string
	text string
	line int
}

type frame struct {
	kind string
	fn   *FuncDecl
	line int
}

// Parse outlines src.
func Parse(src []byte) (*File, error) {
	lines := splitLines(src)
	stmts := statements(lines)

	f := &File{Kind: KindScript, Source: string(src)}
	if len(stmts) > 0 {
		switch stmts[0].word {
		case "function":
			f.Kind = KindFunction
		case "classdef":
			f.Kind = KindClassdef
		}
	}

	// Functions are either all terminated by end or none are. When none
	// are, each function keyword starts the next sibling.
	opened, closed := 0, 0
	var stack []string
	for _, st := range stmts {
		switch {
		case openers[st.word]:
			opened++
			stack = append(stack, st.word)
		case classBlocks[st.word] && len(stack) > 0 && stack[len(stack)-1] == "classdef":
			opened++
			stack = append(stack, st.word)
		case closers[st.word]:
			closed++
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	explicit := closed >= opened

	var (
		frames []frame
		open   *FuncDecl // implicit mode: function awaiting its end line
	)
	innermostFn := func() *FuncDecl {
		for i := len(frames) - 1; i >= 0; i-- {
			if frames[i].kind == "function" {
				return frames[i].fn
			}
		}
		return nil
	}
	top := func() string {
		if len(frames) == 0 {
			return ""
		}
		return frames[len(frames)-1].kind
	}
	finish := func(fn *FuncDecl, end int) {
		fn.EndLine = end
		fn.Text = strings.Join(lines[fn.Line-1:end], "\n")
	}

	for _, st := range stmts {
		switch {
		case st.word == "function":
			decl, err := parseHeader(st)
			if err != nil {
				return nil, err
			}
			if !explicit {
				if len(frames) > 0 {
					return nil, &SyntaxError{Line: st.line, Msg: "function definition inside an open " + top() + " block"}
				}
				if open != nil {
					finish(open, st.line-1)
				}
				f.Functions = append(f.Functions, decl)
				open = decl
				continue
			}
			switch {
			case top() == "methods":
				f.Class.Methods = append(f.Class.Methods, decl)
			case innermostFn() != nil:
				parent := innermostFn()
				parent.Nested = append(parent.Nested, decl)
			default:
				f.Functions = append(f.Functions, decl)
			}
			frames = append(frames, frame{kind: "function", fn: decl, line: st.line})

		case st.word == "classdef":
			if f.Class != nil || len(frames) > 0 {
				return nil, &SyntaxError{Line: st.line, Msg: "classdef must be the first block in a file"}
			}
			cls, err := parseClassHeader(st)
			if err != nil {
				return nil, err
			}
			f.Class = cls
			frames = append(frames, frame{kind: "classdef", line: st.line})

		case classBlocks[st.word] && top() == "classdef":
			frames = append(frames, frame{kind: st.word, line: st.line})

		case openers[st.word]:
			frames = append(frames, frame{kind: st.word, line: st.line})

		case closers[st.word]:
			if len(frames) == 0 {
				if !explicit && open != nil {
					// endfunction closing an implicit function
					continue
				}
				return nil, &SyntaxError{Line: st.line, Msg: "'" + st.word + "' without matching block"}
			}
			fr := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			if fr.kind == "function" {
				finish(fr.fn, st.line)
			}

		case top() == "properties":
			f.Class.Properties = append(f.Class.Properties, st.word)
		}
	}

	if len(frames) > 0 {
		fr := frames[len(frames)-1]
		return nil, &SyntaxError{Line: fr.line, Msg: "'" + fr.kind + "' block is missing its end"}
	}
	if open != nil {
		finish(open, len(lines))
	}
	if f.Kind == KindFunction && len(f.Functions) == 0 {
		return nil, &SyntaxError{Line: 1, Msg: "no function definition"}
	}
	return f, nil
}

// splitLines returns the raw source lines.
func splitLines(src []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines
}

// statements strips comments, joins continuation lines and splits the
// source on top-level ';' and ','.
func statements(lines []string) []statement {
	var (
		out     []statement
		pending strings.Builder
		start   int
		block   int
	)
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "%{" || trimmed == "#{" {
			block++
			continue
		}
		if block > 0 {
			if trimmed == "%}" || trimmed == "#}" {
				block--
			}
			continue
		}

		code := stripComment(raw)
		if pending.Len() == 0 {
			start = i + 1
		}
		if j := strings.Index(code, "..."); j >= 0 {
			pending.WriteString(code[:j])
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(code)
		for _, part := range splitTopLevel(pending.String()) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, statement{word: leadingWord(part), text: part, line: start})
		}
		pending.Reset()
	}
	return out
}

// stripComment cuts a line at the first % or # outside a string.
func stripComment(line string) string {
	inSingle, inDouble := false, false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inDouble:
			if c == '\\' {
				i++
			} else if c == '"' {
				inDouble = false
			}
		case inSingle:
			if c == '\'' {
				if i+1 < len(line) && line[i+1] == '\'' {
					i++
				} else {
					inSingle = false
				}
			}
		case c == '"':
			inDouble = true
		case c == '\'':
			if !transposeContext(line[:i]) {
				inSingle = true
			}
		case c == '%' || c == '#':
			return line[:i]
		}
	}
	return line
}

// transposeContext reports whether a quote after prefix is a transpose
// operator rather than the start of a string.
func transposeContext(prefix string) bool {
	if prefix == "" {
		return false
	}
	c := rune(prefix[len(prefix)-1])
	return unicode.IsLetter(c) || unicode.IsDigit(c) || strings.ContainsRune("_)]}.'", c)
}

// splitTopLevel splits on ';' and ',' outside brackets and strings.
func splitTopLevel(s string) []string {
	var parts []string
	depth, last := 0, 0
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inDouble:
			if c == '\\' {
				i++
			} else if c == '"' {
				inDouble = false
			}
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case c == '"':
			inDouble = true
		case c == '\'':
			inSingle = !transposeContext(s[:i])
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
		case (c == ';' || c == ',') && depth == 0:
			parts = append(parts, s[last:i])
			last = i + 1
		}
	}
	return append(parts, s[last:])
}

func leadingWord(s string) string {
	end := 0
	for end < len(s) && isIdentByte(s[end]) {
		end++
	}
	return s[:end]
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// parseHeader reads "function [o1, o2] = name (p1, p2)" and its shorter
// forms.
func parseHeader(st statement) (*FuncDecl, error) {
	rest := strings.TrimSpace(st.text[len("function"):])
	decl := &FuncDecl{Line: st.line}

	if i := indexTopLevel(rest, '='); i >= 0 {
		outs := strings.TrimSpace(rest[:i])
		outs = strings.TrimSuffix(strings.TrimPrefix(outs, "["), "]")
		decl.Outputs = splitList(outs)
		rest = strings.TrimSpace(rest[i+1:])
	}

	end := 0
	for end < len(rest) && (isIdentByte(rest[end]) || rest[end] == '.') {
		end++
	}
	decl.Name = rest[:end]
	if decl.Name == "" || !unicode.IsLetter(rune(decl.Name[0])) {
		return nil, &SyntaxError{Line: st.line, Msg: "invalid function name in " + strings.TrimSpace(st.text)}
	}

	rest = strings.TrimSpace(rest[end:])
	if strings.HasPrefix(rest, "(") {
		rp := strings.IndexByte(rest, ')')
		if rp < 0 {
			return nil, &SyntaxError{Line: st.line, Msg: "unterminated parameter list"}
		}
		decl.Params = splitList(rest[1:rp])
	}
	return decl, nil
}

// parseClassHeader reads "classdef (Attrs) Name < Base1 & Base2".
func parseClassHeader(st statement) (*ClassDecl, error) {
	rest := strings.TrimSpace(st.text[len("classdef"):])
	if strings.HasPrefix(rest, "(") {
		rp := strings.IndexByte(rest, ')')
		if rp < 0 {
			return nil, &SyntaxError{Line: st.line, Msg: "unterminated class attributes"}
		}
		rest = strings.TrimSpace(rest[rp+1:])
	}

	cls := &ClassDecl{Line: st.line}
	name, parents, _ := strings.Cut(rest, "<")
	cls.Name = strings.TrimSpace(name)
	if cls.Name == "" {
		return nil, &SyntaxError{Line: st.line, Msg: "missing class name"}
	}
	for _, p := range strings.Split(parents, "&") {
		if p = strings.TrimSpace(p); p != "" {
			cls.Parents = append(cls.Parents, p)
		}
	}
	return cls, nil
}

func indexTopLevel(s string, b byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case b:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
		out = append(out, f)
	}
	return out
}
