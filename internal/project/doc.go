// Package project implements project membership and versioning for the
// project service.
//
// A Project owns an ordered set of root files, derives its full file set from
// an analysis binding, and reports structural changes to consumers as
// incremental diffs keyed by version.
//
// # Kinds
//
// There is one concrete Project type. Its kind and variant payload decide
// naming and close-time cleanup:
//
//   - Inferred: rooted at loose open files, named by a NameGenerator, and
//     watching directories where a configuration file could appear.
//   - Configured: identified by its configuration file path, watching that
//     file, its directory and the wildcard directories of its include set.
//   - External: named by the caller and given a complete root list.
//
// # Versions
//
// The state version moves on every mutation (root changes, option changes,
// content edits of contained files). The structure version moves only when
// UpdateGraph observes a different file set. Consumers key incremental
// updates on the structure version:
//
//	resp := p.ChangesSinceVersion(project.UnknownVersion) // full file list
//	...
//	resp = p.ChangesSinceVersion(resp.Info.Version)       // summary or diff
//
// # Watches
//
// Watches are subscription records on the host event queue, delivered to the
// project's ID with a tag naming which watch fired. Close releases every
// subscription before detaching files, so no queued event is observed for a
// closed project.
//
// # Thread Safety
//
// A Project is not safe for concurrent use. The owning service serializes all
// mutations and watch event delivery.
package project
