package project

import "encoding/json"

// UnknownVersion is passed by a consumer that holds no baseline.
const UnknownVersion = -1

// ProjectInfo summarizes a project for consumers.
type ProjectInfo struct {
	ProjectName string `json:"projectName"`
	Version     int    `json:"version"`
	IsInferred  bool   `json:"isInferred"`
}

// FileChanges is a membership delta between two reports.
type FileChanges struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// ChangesResponse is the answer to ChangesSinceVersion. Exactly one of the
// following holds: Files is non-nil (full resync), Changes is non-nil
// (incremental), or neither (nothing changed).
type ChangesResponse struct {
	Info    ProjectInfo  `json:"info"`
	Changes *FileChanges `json:"changes,omitempty"`
	Files   []string     `json:"files,omitempty"`
}

// IsFullList reports whether the response carries the complete file list.
func (r ChangesResponse) IsFullList() bool {
	return r.Files != nil
}

// IsSummary reports whether the response carries neither files nor changes.
func (r ChangesResponse) IsSummary() bool {
	return r.Files == nil && r.Changes == nil
}

// MarshalJSON keeps an empty full file list distinguishable from a summary.
func (r ChangesResponse) MarshalJSON() ([]byte, error) {
	type wire struct {
		Info    ProjectInfo  `json:"info"`
		Changes *FileChanges `json:"changes,omitempty"`
		Files   *[]string    `json:"files,omitempty"`
	}
	w := wire{Info: r.Info, Changes: r.Changes}
	if r.Files != nil {
		files := r.Files
		w.Files = &files
	}
	return json.Marshal(w)
}

// DiffReporter remembers the last file set reported to the default consumer.
type DiffReporter struct {
	reported bool
	version  int
	files    []string
	set      map[string]struct{}
}

// Report answers a consumer that last saw lastKnownVersion. A consumer whose
// version does not match the baseline gets the full list, which becomes the
// new baseline.
func (d *DiffReporter) Report(info ProjectInfo, current []string, lastKnownVersion int) ChangesResponse {
	if !d.reported || lastKnownVersion != d.version {
		d.reset(info.Version, current)
		files := make([]string, len(current))
		copy(files, current)
		return ChangesResponse{Info: info, Files: files}
	}

	if info.Version == d.version {
		return ChangesResponse{Info: info}
	}

	now := toSet(current)
	changes := &FileChanges{Added: []string{}, Removed: []string{}}
	for _, f := range current {
		if _, ok := d.set[f]; !ok {
			changes.Added = append(changes.Added, f)
		}
	}
	for _, f := range d.files {
		if _, ok := now[f]; !ok {
			changes.Removed = append(changes.Removed, f)
		}
	}

	d.reset(info.Version, current)
	return ChangesResponse{Info: info, Changes: changes}
}

// Reset forgets the baseline. The next report is a full list.
func (d *DiffReporter) Reset() {
	d.reported = false
	d.version = 0
	d.files = nil
	d.set = nil
}

func (d *DiffReporter) reset(version int, files []string) {
	d.reported = true
	d.version = version
	d.files = append(d.files[:0:0], files...)
	d.set = toSet(files)
}

func toSet(files []string) map[string]struct{} {
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	return set
}
