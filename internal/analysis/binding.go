// Package analysis defines the contract between a project and the analysis
// engine that derives its program, plus the engines shipped with projectd.
//
// A project owns exactly one Binding at a time: a live binding produced by a
// Factory while the language service is enabled, or Null while it is disabled.
package analysis

// Host is the view of a project that a live binding computes against.
type Host interface {
	// RootFiles returns the project's root file paths in insertion order.
	RootFiles() []string

	// ProjectVersion returns the project's state version token.
	// Bindings use it to decide whether a cached program is still current.
	ProjectVersion() string

	// FileExists reports whether a file is known to the registry or on disk.
	FileExists(path string) bool

	// ReadScript returns the current text of a file, attaching it to the
	// project. ok is false when the file does not exist.
	ReadScript(path string) (text []byte, ok bool)
}

// Binding is a live or null connection to the analysis engine.
type Binding interface {
	// Program returns the current program, recomputing it if the host changed.
	// The Null binding returns nil.
	Program() *Program

	// SetCompilationSettings replaces the options used for the next computation.
	SetCompilationSettings(opts Options)

	// RemoveRoot drops a root file from the engine's view.
	RemoveRoot(path string)

	// RemoveReferencedFile drops a non-root file from the engine's cache.
	RemoveReferencedFile(path string)

	// Dispose releases the binding's resources. The binding is unusable afterwards.
	Dispose()
}

// Factory constructs a live binding seeded with the given options.
type Factory func(host Host, opts Options) Binding

// Null is the binding used while the language service is disabled.
// Every query is empty and every mutation is a no-op.
var Null Binding = nullBinding{}

type nullBinding struct{}

func (nullBinding) Program() *Program              { return nil }
func (nullBinding) SetCompilationSettings(Options) {}
func (nullBinding) RemoveRoot(string)              {}
func (nullBinding) RemoveReferencedFile(string)    {}
func (nullBinding) Dispose()                       {}
