package config

// FunctionFileExt is the extension of interpreted function files.
const FunctionFileExt = ".m"

// FunctionFileExtensions are all recognized function file extensions. When
// one directory holds several files for the same name, the earlier
// extension wins.
var FunctionFileExtensions = []string{".oct", ".mex", ".m"}

// Directory name conventions on the search path.
const (
	ClassDirPrefix   = "@"
	PackageDirPrefix = "+"
	PrivateDir       = "private"
)

// FileMarker separates a parent function from a subfunction in names like
// "parent>sub".
const FileMarker = '>'

// Settings file names, searched in this order.
const (
	SettingsFileName    = "symtab.yaml"
	SettingsFileNameAlt = "symtab.yml"
)

// User-facing names of the registry introspection commands.
const (
	CurrentScopeFuncName    = "__current_scope__"
	DumpSymtabInfoFuncName  = "__dump_symtab_info__"
	GetCmdlineFcnTxtName    = "__get_cmdline_fcn_txt__"
	IgnoreTimeStampFuncName = "ignore_function_time_stamp"
)
