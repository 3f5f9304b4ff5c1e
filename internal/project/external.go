package project

// External is the payload of a project declared by a client.
type External struct {
	label string
}

// NewExternal creates a project with a caller-supplied name and root list.
func NewExternal(cfg Config, name string, roots []string) *Project {
	p := newProject(cfg)
	p.init(&External{label: name}, roots)
	return p
}

func (e *External) kind() Kind     { return KindExternal }
func (e *External) name() string   { return e.label }
func (e *External) release() error { return nil }
