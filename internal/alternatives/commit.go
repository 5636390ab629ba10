package alternatives

import (
	"fmt"
	"os"
)

// commit operations are queued while preparing an update and only applied
// once the admin file has been written, so a crash midway through never
// leaves the real links pointing somewhere the admin file doesn't agree
// with (update-alternatives.c's struct commit_operation).
type opcode int

const (
	opRemove opcode = iota
	opRename
)

type commitOp struct {
	op   opcode
	a, b string
}

func (g *Group) addCommitOp(op opcode, a, b string) {
	g.commitOps = append(g.commitOps, commitOp{op: op, a: a, b: b})
}

// Commit applies every queued operation in order and clears the queue.
func (g *Group) Commit() error {
	for _, op := range g.commitOps {
		switch op.op {
		case opRemove:
			if err := removeIfExists(op.a); err != nil {
				return err
			}
		case opRename:
			if err := os.Rename(op.a, op.b); err != nil {
				return fmt.Errorf("alternatives: renaming %s to %s: %w", op.a, op.b, err)
			}
		}
	}
	g.commitOps = nil
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("alternatives: removing %s: %w", path, err)
	}
	return nil
}

// PathStatus classifies what currently sits at a link path.
type PathStatus int

const (
	PathSymlink PathStatus = iota
	PathMissing
	PathOther
)

// ClassifyPath lstats linkname without following it.
func ClassifyPath(linkname string) (PathStatus, error) {
	fi, err := os.Lstat(linkname)
	if err != nil {
		if os.IsNotExist(err) {
			return PathMissing, nil
		}
		return 0, fmt.Errorf("alternatives: stat %s: %w", linkname, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return PathSymlink, nil
	}
	return PathOther, nil
}

// canRemovePath reports whether the engine is allowed to unlink
// linkname: only when it's a symlink, unless force overrides that.
func canRemovePath(linkname string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	st, err := ClassifyPath(linkname)
	if err != nil {
		return false, err
	}
	return st != PathOther, nil
}

// needsUpdate reports whether linkname must be (re)pointed at filename.
func needsUpdate(linkname, filename string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	st, err := ClassifyPath(linkname)
	if err != nil {
		return false, err
	}
	switch st {
	case PathSymlink:
		target, err := os.Readlink(linkname)
		if err != nil {
			return false, fmt.Errorf("alternatives: reading link %s: %w", linkname, err)
		}
		return target != filename, nil
	case PathOther:
		return false, nil
	default: // PathMissing
		return true, nil
	}
}

// prepareInstallSingle queues the rename-into-place of one link
// (master or slave) pointing through altDir at file
// (update-alternatives.c's alternative_prepare_install_single).
func (g *Group) prepareInstallSingle(altDir, name, linkname, file string, force bool) error {
	fnTmp := altDir + "/" + name + tmpExt
	fn := altDir + "/" + name

	if err := removeIfExists(fnTmp); err != nil {
		return err
	}
	if err := os.Symlink(file, fnTmp); err != nil {
		return fmt.Errorf("alternatives: creating %s: %w", fnTmp, err)
	}
	g.addCommitOp(opRename, fnTmp, fn)

	update, err := needsUpdate(linkname, fn, force)
	if err != nil {
		return err
	}
	if update {
		linkTmp := linkname + tmpExt
		if err := removeIfExists(linkTmp); err != nil {
			return err
		}
		if err := os.Symlink(fn, linkTmp); err != nil {
			return fmt.Errorf("alternatives: creating %s: %w", linkTmp, err)
		}
		g.addCommitOp(opRename, linkTmp, linkname)
	}
	return nil
}

// PrepareInstall queues the symlink updates that move the whole group
// (master plus every installable slave) onto choice.
func (g *Group) PrepareInstall(altDir, choicePath string, force bool) error {
	c := g.Choice(choicePath)
	if c == nil {
		return fmt.Errorf("alternatives: can't install unknown choice %s", choicePath)
	}

	if err := g.prepareInstallSingle(altDir, g.Name, g.Link, choicePath, force); err != nil {
		return err
	}

	for _, sl := range g.Slaves {
		ok, err := canInstallSlave(c, sl.Name)
		if err != nil {
			return err
		}
		if ok {
			if err := g.prepareInstallSingle(altDir, sl.Name, sl.Link, c.Slaves[sl.Name], force); err != nil {
				return err
			}
			continue
		}

		fn := altDir + "/" + sl.Name
		canRemove, err := canRemovePath(sl.Link, force)
		if err != nil {
			return err
		}
		if canRemove {
			g.addCommitOp(opRemove, sl.Link, "")
		}
		g.addCommitOp(opRemove, fn, "")
	}
	return nil
}

// canInstallSlave reports whether choice c provides a slave file that
// actually exists on disk.
func canInstallSlave(c *Choice, slaveName string) (bool, error) {
	file := c.Slaves[slaveName]
	if file == "" {
		return false, nil
	}
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("alternatives: stat %s: %w", file, err)
	}
	return true, nil
}

// RemoveFiles tears down every link and admin-file entry for the group,
// used once its last choice has been removed.
func (g *Group) RemoveFiles(altDir, admDir string, force bool) error {
	if err := removeIfExists(g.Link + tmpExt); err != nil {
		return err
	}
	if ok, err := canRemovePath(g.Link, force); err != nil {
		return err
	} else if ok {
		if err := removeIfExists(g.Link); err != nil {
			return err
		}
	}
	if err := removeIfExists(altDir + "/" + g.Name + tmpExt); err != nil {
		return err
	}
	if err := removeIfExists(altDir + "/" + g.Name); err != nil {
		return err
	}

	for _, sl := range g.Slaves {
		if err := removeIfExists(sl.Link + tmpExt); err != nil {
			return err
		}
		if ok, err := canRemovePath(sl.Link, force); err != nil {
			return err
		} else if ok {
			if err := removeIfExists(sl.Link); err != nil {
				return err
			}
		}
		if err := removeIfExists(altDir + "/" + sl.Name + tmpExt); err != nil {
			return err
		}
		if err := removeIfExists(altDir + "/" + sl.Name); err != nil {
			return err
		}
	}

	return removeIfExists(admDir + "/" + g.Name)
}
