package project

// VersionTracker holds the state and structure versions of a project.
// Both start at zero and only ever increase.
type VersionTracker struct {
	state     int
	structure int
}

// State returns the state version.
func (v *VersionTracker) State() int { return v.state }

// Structure returns the structure version.
func (v *VersionTracker) Structure() int { return v.structure }

// MarkState records a mutation and returns the new state version.
func (v *VersionTracker) MarkState() int {
	v.state++
	return v.state
}

// MarkStructure records a file set change and returns the new structure version.
func (v *VersionTracker) MarkStructure() int {
	v.structure++
	return v.structure
}
