package alternatives

import (
	"fmt"
	"os"
)

// readlinkOrEmpty mirrors areadlink: it returns "" for anything that
// isn't a readable symlink, rather than surfacing an error, since callers
// use it purely to detect breakage.
func readlinkOrEmpty(path string) string {
	fi, err := os.Lstat(path)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return ""
	}
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	return target
}

// UpdateReason explains why Update must repair a link group even though
// no new choice was requested.
type UpdateReason int

const (
	UpdateNotNeeded UpdateReason = iota
	UpdateSlaveChanged
	UpdateLinkBroken
)

func (g *Group) hasBrokenSlave(sl *SlaveLink, c *Choice) (bool, error) {
	ok, err := canInstallSlave(c, sl.Name)
	if err != nil {
		return false, err
	}
	if ok {
		slAltLink := readlinkOrEmpty(sl.Link)
		if slAltLink == "" {
			return true, nil
		}
		wanted := altDirPath(g.altDirHint, sl.Name)
		if slAltLink != wanted {
			return true, nil
		}
		slCurrent := readlinkOrEmpty(wanted)
		if slCurrent == "" {
			return true, nil
		}
		return slCurrent != c.Slaves[sl.Name], nil
	}

	st, err := ClassifyPath(sl.Link)
	if err != nil {
		return false, err
	}
	if st != PathMissing {
		return true, nil
	}
	st, err = ClassifyPath(altDirPath(g.altDirHint, sl.Name))
	if err != nil {
		return false, err
	}
	return st != PathMissing, nil
}

func altDirPath(altDir, name string) string { return altDir + "/" + name }

// NeedsUpdate decides whether the group's links are out of sync with its
// admin-file state (update-alternatives.c's alternative_needs_update).
// It records altDir on the group, where the slave-link checks read it.
func (g *Group) NeedsUpdate(altDir string) (UpdateReason, error) {
	g.altDirHint = altDir

	altlnk := readlinkOrEmpty(g.Link)
	if altlnk == "" || altlnk != altDirPath(altDir, g.Name) {
		return UpdateLinkBroken, nil
	}

	current, err := g.Current(altDir)
	if err != nil {
		return 0, err
	}
	if current == "" {
		return UpdateLinkBroken, nil
	}

	c := g.Choice(current)
	if c == nil {
		return UpdateNotNeeded, nil
	}

	reason := UpdateNotNeeded
	for _, sl := range g.Slaves {
		broken, err := g.hasBrokenSlave(sl, c)
		if err != nil {
			return 0, err
		}
		if broken {
			if sl.Updated {
				reason = UpdateSlaveChanged
			} else {
				return UpdateLinkBroken, nil
			}
		}
	}
	return reason, nil
}

// SelectMode infers auto/manual mode from how the master link currently
// looks on disk, matching alternative_select_mode: a dangling or
// unregistered target forces a mode switch; an absent link forces auto.
func (g *Group) SelectMode(altDir string) error {
	current, err := g.Current(altDir)
	if err != nil {
		return err
	}
	if current == "" {
		g.SetStatus(StatusAuto)
		return nil
	}
	if g.HasChoice(current) {
		return nil
	}
	if _, err := os.Stat(current); err != nil {
		if os.IsNotExist(err) {
			g.SetStatus(StatusAuto)
			return nil
		}
		return fmt.Errorf("alternatives: stat %s: %w", current, err)
	}
	if g.Status != StatusManual {
		g.SetStatus(StatusManual)
	}
	return nil
}

// Evolve folds an --install's freshly-built group (carrying any new
// master link or slaves) into the persisted group a, renaming links that
// moved (update-alternatives.c's alternative_evolve/alternative_evolve_slave).
func (a *Group) Evolve(updated *Group, currentChoice string, c *Choice) error {
	st, err := ClassifyPath(a.Link)
	if err != nil {
		return err
	}
	if st == PathSymlink && a.Link != updated.Link {
		if err := os.Rename(a.Link, updated.Link); err != nil {
			return fmt.Errorf("alternatives: renaming %s to %s: %w", a.Link, updated.Link, err)
		}
	}
	a.SetLink(updated.Link)

	for _, sl := range updated.Slaves {
		if existing := a.Slave(sl.Name); existing != nil {
			if err := a.evolveSlave(currentChoice, existing, c, sl.Link); err != nil {
				return err
			}
		} else {
			sl.Updated = true
		}
		added := a.AddSlave(sl.Name, sl.Link)
		added.Updated = sl.Updated
	}
	return nil
}

func (a *Group) evolveSlave(currentChoice string, sl *SlaveLink, c *Choice, newLink string) error {
	old := sl.Link
	if old == newLink {
		return nil
	}
	st, err := ClassifyPath(old)
	if err != nil {
		return err
	}
	if st != PathSymlink {
		return nil
	}

	var newFile string
	if c != nil && currentChoice == c.Path {
		newFile = c.Slaves[sl.Name]
	} else {
		newFile = readlinkOrEmpty(a.altDirHint + "/" + sl.Name)
	}

	renameLink := false
	if newFile != "" {
		if _, err := os.Stat(newFile); err == nil {
			renameLink = true
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("alternatives: stat %s: %w", newFile, err)
		}
	}

	if renameLink {
		if err := os.Rename(old, newLink); err != nil {
			return fmt.Errorf("alternatives: renaming %s to %s: %w", old, newLink, err)
		}
	} else if err := removeIfExists(old); err != nil {
		return err
	}
	sl.Updated = true
	return nil
}

// Update is the central decision point run after every command that may
// have changed a group's desired choice: it installs newChoice if one
// was picked, repairs broken links otherwise, persists the admin file if
// modified, and finally commits the queued symlink operations
// (update-alternatives.c's alternative_update).
func (db *Db) Update(g *Group, currentChoice, newChoice string) error {
	g.altDirHint = db.AltDir

	if len(g.Choices) == 0 {
		return g.RemoveFiles(db.AltDir, db.AdmDir, db.Force)
	}

	if newChoice != "" && newChoice != currentChoice {
		if err := g.PrepareInstall(db.AltDir, newChoice, db.Force); err != nil {
			return err
		}
	} else if reason, err := g.NeedsUpdate(db.AltDir); err != nil {
		return err
	} else if reason != UpdateNotNeeded {
		choice := currentChoice
		if choice != "" && !g.HasChoice(choice) {
			best := g.Best()
			if best == nil {
				return fmt.Errorf("alternatives: link group %s has no choices to repair with", g.Name)
			}
			choice = best.Path
			g.SetStatus(StatusAuto)
		}
		if choice != "" {
			if err := g.PrepareInstall(db.AltDir, choice, db.Force); err != nil {
				return err
			}
		}
	}

	if g.Modified() {
		if err := db.Save(g); err != nil {
			return err
		}
	}

	return g.Commit()
}
