// symbols/symbol_table.go - Symbol table entry point
//
// The package is split into focused files:
// - symbol_table_core.go: scope ids, categories, Function and SymbolRecord
// - symbol_table_ext.go: interfaces to the search path, loader, clock and class system
// - symbol_table_advanced.go: the Registry struct
// - symbol_table_init.go: registry construction, the scope arena and teardown
// - symbol_table_instance_helpers.go: per-scope variable tables
// - symbol_table_nest.go: variable sharing between nested functions
// - symbol_table_resolution.go: FcnInfo, the per-name function cache and its precedence order
// - symbol_table_staleness.go: out-of-date checks, loading and adoption of function files
// - symbol_table_dispatch.go: dispatch type computation and class precedence
// - symbol_table_operations.go: registry-level function lookup, install and clear
// - symbol_table_variables.go: registry-level variable operations
// - symbol_table_dump.go: diagnostic dumps
// - symbol_table_errors.go: error values

package symbols

// The registry is an explicit instance created by New; there is no
// process-wide symbol table.
