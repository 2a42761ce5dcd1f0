// Package watcher lets many subscribers watch files and folders, by exact path
// or by a wildcard in the final segment, including paths that do not exist yet.
//
// Subscribers share native per-folder watches through a pool. Each watched
// folder is represented by one shared watcher node; a node whose folder is
// missing follows its parent node until the folder appears, so the node graph
// always reaches a filesystem root. Each subscription keeps its own record of
// which matched paths exist and uses it to turn the duplicated or coalesced
// events of the native layer into a clean Created/Edited/Deleted sequence.
//
// All graph mutation happens under a single mutex. Handlers run after that
// mutex is released, on the goroutine that delivered the native event.
package watcher
