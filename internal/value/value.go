// Package value holds the runtime values the symbol table has to look at:
// built-in type tags used for method dispatch, plain built-in arrays and
// instances of user-defined classes.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// BuiltinType tags every value of a built-in class. Values of user-defined
// classes report Unknown.
type BuiltinType uint8

const (
	Double BuiltinType = iota
	Complex
	Float
	FloatComplex
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Bool
	Char
	Struct
	Cell
	FuncHandle
	Unknown
)

// NumBuiltinTypes is the number of real built-in tags (Unknown excluded).
const NumBuiltinTypes = int(Unknown)

var builtinClassNames = [...]string{
	Double:       "double",
	Complex:      "double",
	Float:        "single",
	FloatComplex: "single",
	Int8:         "int8",
	Int16:        "int16",
	Int32:        "int32",
	Int64:        "int64",
	Uint8:        "uint8",
	Uint16:       "uint16",
	Uint32:       "uint32",
	Uint64:       "uint64",
	Bool:         "logical",
	Char:         "char",
	Struct:       "struct",
	Cell:         "cell",
	FuncHandle:   "function_handle",
	Unknown:      "unknown",
}

var builtinTypeNames = [...]string{
	Double:       "double",
	Complex:      "complex",
	Float:        "single",
	FloatComplex: "float complex",
	Int8:         "int8",
	Int16:        "int16",
	Int32:        "int32",
	Int64:        "int64",
	Uint8:        "uint8",
	Uint16:       "uint16",
	Uint32:       "uint32",
	Uint64:       "uint64",
	Bool:         "bool",
	Char:         "char",
	Struct:       "struct",
	Cell:         "cell",
	FuncHandle:   "function handle",
	Unknown:      "unknown",
}

func (t BuiltinType) String() string {
	if int(t) < len(builtinTypeNames) {
		return builtinTypeNames[t]
	}
	return "BuiltinType(" + strconv.Itoa(int(t)) + ")"
}

// ClassName is the class a value of this tag dispatches as.
// Complex values dispatch as their real counterpart.
func (t BuiltinType) ClassName() string {
	if int(t) < len(builtinClassNames) {
		return builtinClassNames[t]
	}
	return builtinClassNames[Unknown]
}

func (t BuiltinType) IsNumeric() bool { return t <= Uint64 }
func (t BuiltinType) IsInteger() bool { return t >= Int8 && t <= Uint64 }
func (t BuiltinType) IsFloat() bool   { return t <= FloatComplex }
func (t BuiltinType) IsComplex() bool { return t == Complex || t == FloatComplex }

// IsArray reports whether the tag belongs to the numeric/logical/char
// array family. Struct, cell and function handles are not arrays here.
func (t BuiltinType) IsArray() bool { return t <= Char }

// Value is anything a name can be bound to in a scope, including callables.
type Value interface {
	BuiltinType() BuiltinType
	ClassName() string
	String() string
}

// Builtin is a value of a built-in class. Data holds numeric payload for
// the array family, Text holds char data or the target of a function handle.
type Builtin struct {
	Type BuiltinType
	Dims []int
	Data []float64
	Text string
}

func (b *Builtin) BuiltinType() BuiltinType { return b.Type }
func (b *Builtin) ClassName() string        { return b.Type.ClassName() }

// Numel is the product of the dimensions.
func (b *Builtin) Numel() int {
	if len(b.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range b.Dims {
		n *= d
	}
	return n
}

// DimsString renders the shape as "RxC[x...]".
func (b *Builtin) DimsString() string {
	parts := make([]string, len(b.Dims))
	for i, d := range b.Dims {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "x")
}

func (b *Builtin) String() string {
	switch b.Type {
	case Char:
		return strconv.Quote(b.Text)
	case FuncHandle:
		return "@" + b.Text
	case Struct, Cell:
		return fmt.Sprintf("<%s %s>", b.DimsString(), b.Type.ClassName())
	}
	if b.Numel() == 1 && len(b.Data) == 1 {
		return strconv.FormatFloat(b.Data[0], 'g', -1, 64)
	}
	return fmt.Sprintf("<%s %s>", b.DimsString(), b.Type.ClassName())
}

// NewScalar returns a 1x1 value of the given built-in type.
func NewScalar(t BuiltinType, v float64) *Builtin {
	return &Builtin{Type: t, Dims: []int{1, 1}, Data: []float64{v}}
}

// NewMatrix returns a rows x cols value; data is stored column-major and
// may be shorter than rows*cols.
func NewMatrix(t BuiltinType, rows, cols int, data ...float64) *Builtin {
	return &Builtin{Type: t, Dims: []int{rows, cols}, Data: data}
}

func NewString(s string) *Builtin {
	return &Builtin{Type: Char, Dims: []int{1, len(s)}, Text: s}
}

func NewBool(v bool) *Builtin {
	if v {
		return NewScalar(Bool, 1)
	}
	return NewScalar(Bool, 0)
}

// NewFuncHandle returns a handle to the named function.
func NewFuncHandle(name string) *Builtin {
	return &Builtin{Type: FuncHandle, Dims: []int{1, 1}, Text: name}
}

func NewStruct() *Builtin { return &Builtin{Type: Struct, Dims: []int{1, 1}} }

func NewCell(rows, cols int) *Builtin { return &Builtin{Type: Cell, Dims: []int{rows, cols}} }

// Sample returns a 1x1 value of the named class or type, for dispatch
// queries. Names that are not built-in give an Object.
func Sample(name string) Value {
	for _, names := range [][len(builtinClassNames)]string{builtinClassNames, builtinTypeNames} {
		for t := Double; t < Unknown; t++ {
			if names[t] == name {
				return &Builtin{Type: t, Dims: []int{1, 1}}
			}
		}
	}
	return NewObject(name)
}

// Object is an instance of a user-defined class.
type Object struct {
	Class  string
	Fields map[string]Value
}

func NewObject(class string) *Object {
	return &Object{Class: class, Fields: make(map[string]Value)}
}

func (o *Object) BuiltinType() BuiltinType { return Unknown }
func (o *Object) ClassName() string        { return o.Class }
func (o *Object) String() string           { return "<" + o.Class + " object>" }

// IsComplex reports whether v carries complex data.
func IsComplex(v Value) bool {
	return v != nil && v.BuiltinType().IsComplex()
}

// Dims returns the shape string of v, "1x1" for values without a shape.
func Dims(v Value) string {
	if b, ok := v.(*Builtin); ok && len(b.Dims) > 0 {
		return b.DimsString()
	}
	return "1x1"
}
