package symbols

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/funvibe/symtab/internal/value"
)

// Dump writes the diagnostic listing of one scope. The global scope is
// dumped as the global variable table.
func (r *Registry) Dump(w io.Writer, id ScopeID) error {
	var b strings.Builder
	r.dumpScope(&b, id)
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Registry) DumpGlobal(w io.Writer) error {
	var b strings.Builder
	r.dumpGlobal(&b)
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Registry) DumpFunctions(w io.Writer) error {
	var b strings.Builder
	r.dumpFunctions(&b)
	_, err := io.WriteString(w, b.String())
	return err
}

// DumpAll writes the globals, every scope and the function table.
func (r *Registry) DumpAll(w io.Writer) error {
	var b strings.Builder
	b.WriteString("*** symbol table " + r.id.String() + " (current scope " +
		strconv.Itoa(int(r.currentScope)) + ", context " + strconv.Itoa(int(r.currentContext)) + ")\n\n")
	r.dumpGlobal(&b)
	for _, id := range r.Scopes() {
		if id == GlobalScope {
			continue
		}
		r.dumpScope(&b, id)
	}
	r.dumpFunctions(&b)
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Registry) dumpGlobal(b *strings.Builder) {
	if len(r.globals) == 0 {
		return
	}
	b.WriteString("*** dumping global symbol table\n\n")
	for _, name := range r.GlobalVariableNames() {
		b.WriteString("  " + name + " " + shortDisp(r.globals[name]) + "\n")
	}
	b.WriteString("\n")
}

func (r *Registry) dumpScope(b *strings.Builder, id ScopeID) {
	if id == GlobalScope {
		r.dumpGlobal(b)
		return
	}
	s := r.scopes[id]
	if s == nil {
		return
	}

	b.WriteString("*** dumping symbol table scope " + strconv.Itoa(int(id)) + " (" + s.name + ")\n\n")

	if sfuns := r.SubfunctionsDefinedInScope(id); len(sfuns) > 0 {
		b.WriteString("  subfunctions defined in this scope:\n")
		for _, name := range sfuns {
			b.WriteString("    " + name + "\n")
		}
		b.WriteString("\n")
	}

	if len(s.persistent) > 0 {
		names := make([]string, 0, len(s.persistent))
		for name := range s.persistent {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteString("  persistent variables in this scope:\n\n")
		for _, name := range names {
			b.WriteString("    " + name + " " + shortDisp(s.persistent[name]) + "\n")
		}
		b.WriteString("\n")
	}

	if len(s.table) > 0 {
		b.WriteString("  other symbols in this scope (l=local; a=auto; f=formal\n" +
			"    h=hidden; i=inherited; g=global; p=persistent)\n\n")
		for _, name := range s.sortedNames() {
			s.table[name].dump(b, "    ")
		}
		b.WriteString("\n")
	}
}

func (r *Registry) dumpFunctions(b *strings.Builder) {
	if len(r.fcnTable) == 0 {
		return
	}
	b.WriteString("*** dumping globally visible functions from symbol table\n" +
		"    (c=commandline, b=built-in)\n\n")
	names := make([]string, 0, len(r.fcnTable))
	for name := range r.fcnTable {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.fcnTable[name].dump(b, "  ")
	}
	b.WriteString("\n")
}

func (sr *SymbolRecord) dump(b *strings.Builder, prefix string) {
	b.WriteString(prefix + sr.name)
	if v := sr.Varval(); v != nil {
		b.WriteString(" [" + sr.flags.letters() + "] " + shortDisp(v))
	}
	b.WriteString("\n")
}

func shortDisp(v value.Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}
