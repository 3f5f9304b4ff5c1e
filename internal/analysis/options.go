package analysis

import (
	"path"
	"strings"
)

// Option keys understood by the engines.
const (
	OptionAllowNonTSExtensions = "allowNonTsExtensions"
	OptionAllowJS              = "allowJs"
	OptionTarget               = "target"
	OptionJSX                  = "jsx"
	OptionNoLib                = "noLib"
	OptionLibDirectory         = "libDirectory"
	OptionDefaultLibrary       = "defaultLibrary"
)

// DefaultLibDirectory is where default library files resolve when the
// options do not name a lib directory.
const DefaultLibDirectory = "/usr/local/lib/projectd"

// Options is the opaque compiler option record shared by projects and engines.
type Options map[string]any

// DefaultOptions returns the options synthesized for projects created without any.
func DefaultOptions() Options {
	return Options{
		OptionTarget:               "es5",
		OptionJSX:                  "preserve",
		OptionAllowJS:              true,
		OptionAllowNonTSExtensions: true,
	}
}

// Clone returns a shallow copy of the options.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Bool returns a boolean option, false when absent or not a bool.
func (o Options) Bool(key string) bool {
	b, _ := o[key].(bool)
	return b
}

// String returns a string option, "" when absent or not a string.
func (o Options) String(key string) string {
	s, _ := o[key].(string)
	return s
}

// DefaultLibraryPath resolves the default library file for a set of options.
// An explicit defaultLibrary option wins; otherwise the file is chosen by target
// inside the lib directory.
func DefaultLibraryPath(opts Options) string {
	if lib := opts.String(OptionDefaultLibrary); lib != "" {
		return lib
	}
	dir := opts.String(OptionLibDirectory)
	if dir == "" {
		dir = DefaultLibDirectory
	}

	name := "lib.d.ts"
	switch strings.ToLower(opts.String(OptionTarget)) {
	case "es6", "es2015":
		name = "lib.es6.d.ts"
	case "", "es3", "es5":
	default:
		name = "lib." + strings.ToLower(opts.String(OptionTarget)) + ".full.d.ts"
	}
	return path.Join(dir, name)
}
