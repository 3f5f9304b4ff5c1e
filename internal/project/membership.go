package project

import "github.com/dshills/projectd/internal/scriptinfo"

// FileMembership is an ordered set of root files with a path index.
// The index keys always equal the paths in the ordered list, once each.
type FileMembership struct {
	roots []*scriptinfo.Info
	index map[string]*scriptinfo.Info
}

// NewFileMembership creates an empty membership.
func NewFileMembership() *FileMembership {
	return &FileMembership{index: make(map[string]*scriptinfo.Info)}
}

// Add appends info unless its path is already a member.
func (m *FileMembership) Add(info *scriptinfo.Info) bool {
	if _, ok := m.index[info.Path()]; ok {
		return false
	}
	m.roots = append(m.roots, info)
	m.index[info.Path()] = info
	return true
}

// Remove drops a path, keeping the order of the remaining members.
func (m *FileMembership) Remove(path string) bool {
	if _, ok := m.index[path]; !ok {
		return false
	}
	delete(m.index, path)
	for i, info := range m.roots {
		if info.Path() == path {
			m.roots = append(m.roots[:i], m.roots[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether path is a member.
func (m *FileMembership) Contains(path string) bool {
	_, ok := m.index[path]
	return ok
}

// Get returns the member with the given path.
func (m *FileMembership) Get(path string) (*scriptinfo.Info, bool) {
	info, ok := m.index[path]
	return info, ok
}

// Len returns the number of members.
func (m *FileMembership) Len() int {
	return len(m.roots)
}

// Paths returns member paths in insertion order.
func (m *FileMembership) Paths() []string {
	out := make([]string, len(m.roots))
	for i, info := range m.roots {
		out[i] = info.Path()
	}
	return out
}

// Infos returns members in insertion order.
func (m *FileMembership) Infos() []*scriptinfo.Info {
	out := make([]*scriptinfo.Info, len(m.roots))
	copy(out, m.roots)
	return out
}

// Clear removes every member.
func (m *FileMembership) Clear() {
	m.roots = nil
	m.index = make(map[string]*scriptinfo.Info)
}
