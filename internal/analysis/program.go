package analysis

// Program is an immutable snapshot of the files an engine derived for a project.
// A binding returns the same *Program until its inputs change.
type Program struct {
	files           []string
	index           map[string]struct{}
	structureReused bool
}

// NewProgram creates a program from an ordered file list. Duplicate paths keep
// their first position. structureReused records whether the previous program's
// structure could be reused, which the project uses to decide if its file set changed.
func NewProgram(files []string, structureReused bool) *Program {
	p := &Program{
		files:           make([]string, 0, len(files)),
		index:           make(map[string]struct{}, len(files)),
		structureReused: structureReused,
	}
	for _, f := range files {
		if _, ok := p.index[f]; ok {
			continue
		}
		p.index[f] = struct{}{}
		p.files = append(p.files, f)
	}
	return p
}

// SourceFiles returns the program's files in program order.
func (p *Program) SourceFiles() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.files))
	copy(out, p.files)
	return out
}

// Contains reports whether path is part of the program.
func (p *Program) Contains(path string) bool {
	if p == nil {
		return false
	}
	_, ok := p.index[path]
	return ok
}

// Len returns the number of files in the program.
func (p *Program) Len() int {
	if p == nil {
		return 0
	}
	return len(p.files)
}

// StructureIsReused reports whether the engine reused the previous program's structure.
func (p *Program) StructureIsReused() bool {
	return p != nil && p.structureReused
}

// SameFiles reports whether two programs hold the same file set, ignoring order.
func SameFiles(a, b *Program) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Len() != b.Len() {
		return false
	}
	for f := range a.index {
		if !b.Contains(f) {
			return false
		}
	}
	return true
}
