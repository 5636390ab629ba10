package statusdb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dpkgcore/dpkg-go/internal/deb822"
	"github.com/dpkgcore/dpkg-go/internal/pkgdb"
)

// Mode selects whether a Db is opened for read-only inspection or for
// read/write database modification (spec.md §4.5).
type Mode int

const (
	ReadOnly Mode = iota
	Write
)

// Db is one open dpkg status database: the in-memory package hash plus the
// locks and journal state needed to persist changes back to disk.
type Db struct {
	dir  AdminDir
	mode Mode
	hash *pkgdb.PkgHash
	warn pkgdb.Warner

	lock         *fileLock
	frontendLock *fileLock

	nextUpdate     int
	haveAvailable  bool
	writeAvailable bool
}

// Open opens the status database rooted at dir. For Write mode it acquires
// the frontend and database locks (unless DPKG_FRONTEND_LOCKED indicates a
// surrounding frontend already holds the frontend lock), replays any
// pending journal entries on top of the status file, and, since the merged
// state is now authoritative, immediately folds them back into the status
// file and removes them (dpkg's cleanupdates).
func Open(dir AdminDir, mode Mode, nativeArch string, warn pkgdb.Warner) (*Db, error) {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	db := &Db{dir: dir, mode: mode, hash: pkgdb.New(nativeArch), warn: warn}

	if mode == Write {
		if err := os.MkdirAll(dir.Root, 0755); err != nil {
			return nil, fmt.Errorf("statusdb: creating admin directory: %w", err)
		}
		if !frontendLocked() {
			fl, err := acquireLock(dir.FrontendLockFile())
			if err != nil {
				return nil, err
			}
			db.frontendLock = fl
		}
		l, err := acquireLock(dir.LockFile())
		if err != nil {
			db.frontendLock.Unlock()
			return nil, err
		}
		db.lock = l
		if err := os.MkdirAll(dir.UpdatesDir(), 0755); err != nil {
			return nil, fmt.Errorf("statusdb: creating updates directory: %w", err)
		}
	}

	if err := db.parseStatusFile(); err != nil {
		db.unlockAll()
		return nil, err
	}
	if err := db.cleanupdates(); err != nil {
		db.unlockAll()
		return nil, err
	}

	return db, nil
}

// Hash returns the database's in-memory package hash.
func (db *Db) Hash() *pkgdb.PkgHash { return db.hash }

// Mode returns the mode the database was opened with.
func (db *Db) Mode() Mode { return db.mode }

func (db *Db) unlockAll() {
	if db.lock != nil {
		db.lock.Unlock()
	}
	if db.frontendLock != nil {
		db.frontendLock.Unlock()
	}
}

func (db *Db) parseStatusFile() error {
	return db.parseStanzaFile(db.dir.StatusFile(), true, false)
}

// LoadAvailable reads the available-package file into the database's
// available view, linking its dependency graph. Callers that only need the
// installed-status view (most read-only queries) can skip this.
func (db *Db) LoadAvailable() error {
	db.haveAvailable = true
	return db.parseStanzaFile(db.dir.AvailableFile(), false, false)
}

func (db *Db) parseStanzaFile(path string, installed, journal bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("statusdb: opening %s: %w", path, err)
	}
	defer f.Close()
	return db.replayStanzas(f, installed, journal)
}

// replayStanzas folds a sequence of deb822 stanzas into the database,
// picking the instance-selection rule spec.md §4.4 assigns to each of the
// three contexts that call it: a plain status-file load (installed &&
// !journal) resolves strictly by-arch via PkgHash.Instance; an
// available-file load (!installed) applies the singleton-reuse rule via
// PkgHash.InstanceForAvailable; an update-journal replay (installed &&
// journal) applies the cross-grade rule via PkgHash.InstanceForUpdate.
func (db *Db) replayStanzas(r io.Reader, installed, journal bool) error {
	p := deb822.NewParser(r)
	for {
		st, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("statusdb: parsing stanza: %w", err)
		}
		name, arch, bin, err := pkgdb.ParsePackageBin(db.hash, st, db.warn)
		if err != nil {
			return fmt.Errorf("statusdb: %w", err)
		}
		var pi *pkgdb.PackageInstance
		switch {
		case installed && journal:
			pi = db.hash.InstanceForUpdate(name, arch)
		case installed:
			pi = db.hash.Instance(name, arch)
		default:
			pi = db.hash.InstanceForAvailable(name, arch)
		}
		if installed {
			pkgdb.UnlinkDeps(pi, false)
			pi.Installed = bin
			if sv, ok := st.Get("Status"); ok {
				w, e, s, err := pkgdb.ParseStatusField(sv)
				if err != nil {
					return fmt.Errorf("statusdb: package %s: %w", name, err)
				}
				pi.Want, pi.EFlag, pi.Status = w, e, s
			}
			pkgdb.LinkDeps(pi, false)
		} else {
			pkgdb.UnlinkDeps(pi, true)
			pi.Available = bin
			pkgdb.LinkDeps(pi, true)
		}
	}
}

// cleanupdates replays updates/<NNNN> journal entries (oldest first) on top
// of the status file already loaded, then, if writable, folds the merged
// state back into the status file and removes the journal entries (mirrors
// dbmodify.c's cleanupdates()).
func (db *Db) cleanupdates() error {
	entries, err := os.ReadDir(db.dir.UpdatesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("statusdb: scanning updates directory: %w", err)
	}

	names, err := validUpdateNames(entries)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	for _, name := range names {
		path := filepath.Join(db.dir.UpdatesDir(), name)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("statusdb: opening update file %s: %w", path, err)
		}
		err = db.replayStanzas(f, true, true)
		f.Close()
		if err != nil {
			return fmt.Errorf("statusdb: replaying update file %s: %w", path, err)
		}
	}

	if db.mode != Write {
		return nil
	}

	if err := db.writeStatusFile(); err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(db.dir.UpdatesDir(), name)); err != nil {
			return fmt.Errorf("statusdb: removing incorporated update file %s: %w", name, err)
		}
	}
	if err := syncDir(db.dir.UpdatesDir()); err != nil {
		return err
	}
	db.nextUpdate = 0
	return nil
}

// validUpdateNames filters directory entries to all-digit filenames, in
// ascending numeric order, and enforces dpkg's rule that every update
// filename in a given directory must have the same digit width.
func validUpdateNames(entries []os.DirEntry) ([]string, error) {
	width := -1
	var names []string
	for _, e := range entries {
		name := e.Name()
		if name == updateTmpName {
			continue
		}
		if !isAllDigits(name) {
			continue
		}
		if len(name) > importantMaxLen {
			return nil, fmt.Errorf("statusdb: updates directory contains file %q whose name is too long", name)
		}
		if width == -1 {
			width = len(name)
		} else if len(name) != width {
			return nil, fmt.Errorf("statusdb: updates directory contains files with different length names (both %d and %d)", width, len(name))
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (db *Db) writeStatusFile() error {
	var buf bytes.Buffer
	for _, set := range sortedSets(db.hash) {
		for _, pi := range set.Instances {
			if pi.Installed == nil {
				continue
			}
			st := pkgdb.WritePackageBin(set.Name, pi.Installed)
			st.Set("Status", pkgdb.WriteStatusField(pi.Want, pi.EFlag, pi.Status))
			if err := deb822.Write(&buf, st); err != nil {
				return fmt.Errorf("statusdb: rendering status stanza for %s: %w", set.Name, err)
			}
		}
	}
	return writeFileAtomic(db.dir.StatusFile(), buf.Bytes(), 0644)
}

func sortedSets(h *pkgdb.PkgHash) []*pkgdb.PackageSet {
	sets := h.Sets()
	sort.Slice(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })
	return sets
}

// Note records pi's current installed status as a new journal entry,
// checkpointing automatically once more than maxUpdates entries have
// accumulated
// (dbmodify.c's modstatdb_note / modstatdb_note_core).
func (db *Db) Note(pi *pkgdb.PackageInstance) error {
	if db.mode != Write {
		return nil
	}
	if pi.Installed == nil {
		return fmt.Errorf("statusdb: cannot record a journal entry for %s with no installed pkgbin", pi.Set().Name)
	}

	var buf bytes.Buffer
	st := pkgdb.WritePackageBin(pi.Set().Name, pi.Installed)
	st.Set("Status", pkgdb.WriteStatusField(pi.Want, pi.EFlag, pi.Status))
	if err := deb822.Write(&buf, st); err != nil {
		return fmt.Errorf("statusdb: rendering journal entry for %s: %w", pi.Set().Name, err)
	}

	if err := writeImportantTmp(db.dir.UpdateTmpFile(), buf.Bytes()); err != nil {
		return err
	}

	name := fmt.Sprintf("%04d", db.nextUpdate)
	if len(name) > importantMaxLen {
		return fmt.Errorf("statusdb: journal entry name %q longer than %d", name, importantMaxLen)
	}
	dest := filepath.Join(db.dir.UpdatesDir(), name)
	if err := os.Rename(db.dir.UpdateTmpFile(), dest); err != nil {
		return fmt.Errorf("statusdb: installing journal entry for %s: %w", pi.Set().Name, err)
	}
	if err := syncDir(db.dir.UpdatesDir()); err != nil {
		return err
	}

	db.nextUpdate++
	if db.nextUpdate > maxUpdates {
		return db.Checkpoint()
	}
	return nil
}

// writeImportantTmp fills path with 512 lines of "#padding\n" (matching
// dpkg's createimptmp, which reserves disk space up front so that the
// subsequent ftruncate to the record's real size can never hit ENOSPC),
// then overwrites the prefix with the journal record and truncates to its
// length.
func writeImportantTmp(path string, record []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("statusdb: creating %s: %w", path, err)
	}
	defer f.Close()

	padding := strings.Repeat("#padding\n", 512)
	if _, err := f.WriteString(padding); err != nil {
		return fmt.Errorf("statusdb: padding %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("statusdb: seeking %s: %w", path, err)
	}
	if _, err := f.Write(record); err != nil {
		return fmt.Errorf("statusdb: writing journal record to %s: %w", path, err)
	}
	if err := f.Truncate(int64(len(record))); err != nil {
		return fmt.Errorf("statusdb: truncating %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("statusdb: fsyncing %s: %w", path, err)
	}
	return nil
}

// Checkpoint folds the in-memory status back into the status file and
// clears the accumulated journal (dbmodify.c's modstatdb_checkpoint).
func (db *Db) Checkpoint() error {
	if db.mode != Write {
		return fmt.Errorf("statusdb: cannot checkpoint a read-only database")
	}
	if err := db.writeStatusFile(); err != nil {
		return err
	}
	for i := 0; i < db.nextUpdate; i++ {
		name := fmt.Sprintf("%04d", i)
		path := filepath.Join(db.dir.UpdatesDir(), name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("statusdb: removing journal entry %s: %w", path, err)
		}
	}
	if err := syncDir(db.dir.UpdatesDir()); err != nil {
		return err
	}
	db.nextUpdate = 0
	return nil
}

// MarkWriteAvailable requests that Shutdown persist the available-package
// view back to the available file.
func (db *Db) MarkWriteAvailable() { db.writeAvailable = true }

// Shutdown checkpoints any pending journal entries, optionally persists the
// available file, and releases the database locks.
func (db *Db) Shutdown() error {
	if db.writeAvailable {
		var buf bytes.Buffer
		for _, set := range sortedSets(db.hash) {
			for _, pi := range set.Instances {
				if pi.Available == nil {
					continue
				}
				st := pkgdb.WritePackageBin(set.Name, pi.Available)
				if err := deb822.Write(&buf, st); err != nil {
					return fmt.Errorf("statusdb: rendering available stanza for %s: %w", set.Name, err)
				}
			}
		}
		if err := writeFileAtomic(db.dir.AvailableFile(), buf.Bytes(), 0644); err != nil {
			return err
		}
	}

	if db.mode == Write {
		if err := db.Checkpoint(); err != nil {
			db.unlockAll()
			return err
		}
		os.Remove(db.dir.UpdateTmpFile())
	}
	db.unlockAll()
	return nil
}
