// Package statusdb implements the on-disk package status database: the
// admindir layout, the journal/checkpoint update protocol, and the
// advisory locking dpkg uses to serialize database access (spec.md §4.5).
package statusdb

import "path/filepath"

const (
	statusFileName    = "status"
	statusOldFileName = "status-old"
	availableFileName = "available"
	lockFileName      = "lock"
	frontendLockName  = "lock-frontend"
	updatesDirName    = "updates"
	updateTmpName     = "tmp.i"
)

// importantMaxLen is the longest an updates/ journal filename may be; dpkg
// rejects any filename with more digits than this as database corruption.
const importantMaxLen = 10

// maxUpdates is the number of journal entries accumulated before a
// checkpoint folds them into the status file, matching dpkg's own
// MAXUPDATES threshold.
const maxUpdates = 250

// AdminDir names the filesystem paths making up one dpkg administrative
// directory (normally /var/lib/dpkg).
type AdminDir struct {
	Root string
}

func (d AdminDir) path(name string) string { return filepath.Join(d.Root, name) }

// StatusFile is the path to the current, authoritative status database.
func (d AdminDir) StatusFile() string { return d.path(statusFileName) }

// StatusOldFile is the path to the previous checkpoint's status file,
// preserved as a fallback copy.
func (d AdminDir) StatusOldFile() string { return d.path(statusOldFileName) }

// AvailableFile is the path to the available-package metadata file.
func (d AdminDir) AvailableFile() string { return d.path(availableFileName) }

// LockFile is the path to the main database advisory lock.
func (d AdminDir) LockFile() string { return d.path(lockFileName) }

// FrontendLockFile is the path to the higher-level frontend advisory lock
// (apt-get and similar tools hold this across a whole transaction).
func (d AdminDir) FrontendLockFile() string { return d.path(frontendLockName) }

// UpdatesDir is the path to the journal directory.
func (d AdminDir) UpdatesDir() string { return d.path(updatesDirName) }

// UpdateTmpFile is the path to the preallocated scratch file a journal
// entry is assembled into before being renamed into UpdatesDir.
func (d AdminDir) UpdateTmpFile() string { return filepath.Join(d.UpdatesDir(), updateTmpName) }
