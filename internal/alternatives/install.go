package alternatives

import (
	"fmt"
	"os"
	"strings"
)

// SlaveSpec is one --slave argument: a secondary link, the name it's
// registered under, and the file it should point at for this choice.
type SlaveSpec struct {
	Link string
	Name string
	File string
}

func checkName(name string) error {
	if strings.ContainsAny(name, "/ \t") {
		return fmt.Errorf("alternatives: name %q must not contain '/' or whitespace", name)
	}
	return nil
}

func checkLink(link string) error {
	if !strings.HasPrefix(link, "/") {
		return fmt.Errorf("alternatives: link %q is not absolute", link)
	}
	return nil
}

func checkPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("alternatives: path %q is not absolute", path)
	}
	return nil
}

// tree indexes every loaded group two ways, mirroring
// update-alternatives.c's alternative_map_load_tree: byLink resolves any
// link path (master or slave) back to the group that owns it, byParent
// resolves any registered name (master or slave) back to the group that
// owns it.
type tree struct {
	byLink   map[string]*Group
	byParent map[string]*Group
}

func (db *Db) buildTree() (*tree, error) {
	groups, err := db.LoadAll()
	if err != nil {
		return nil, err
	}
	t := &tree{byLink: map[string]*Group{}, byParent: map[string]*Group{}}
	for _, g := range groups {
		t.byLink[g.Link] = g
		t.byParent[g.Name] = g
		for _, sl := range g.Slaves {
			t.byLink[sl.Link] = g
			t.byParent[sl.Name] = g
		}
	}
	return t, nil
}

// CheckInstallArgs validates a prospective --install invocation against
// every other registered group, catching the same mistakes
// alternative_check_install_args does: reusing a name or link that
// belongs to an unrelated group, in either direction between master and
// slave roles.
func (db *Db) CheckInstallArgs(name, link, path string, slaves []SlaveSpec) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := checkLink(link); err != nil {
		return err
	}
	if err := checkPath(path); err != nil {
		return err
	}

	t, err := db.buildTree()
	if err != nil {
		return err
	}

	if found, ok := t.byParent[name]; ok && found.Name != name {
		return fmt.Errorf("alternatives: %s can't be master: it is a slave of %s", name, found.Name)
	}
	if found, ok := t.byLink[link]; ok && found.Name != name {
		return fmt.Errorf("alternatives: link %s is already managed by %s", link, found.Name)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("alternatives: path %s doesn't exist", path)
		}
		return fmt.Errorf("alternatives: stat %s: %w", path, err)
	}

	for _, sl := range slaves {
		if err := checkName(sl.Name); err != nil {
			return err
		}
		if err := checkLink(sl.Link); err != nil {
			return err
		}
		if err := checkPath(sl.File); err != nil {
			return err
		}

		if found, ok := t.byParent[sl.Name]; ok && found.Name != name {
			if found.Name == sl.Name {
				return fmt.Errorf("alternatives: %s can't be slave of %s: it is a master alternative", sl.Name, name)
			}
			return fmt.Errorf("alternatives: %s can't be slave of %s: it is a slave of %s", sl.Name, name, found.Name)
		}

		found, ok := t.byLink[sl.Link]
		if ok && found.Name != name {
			return fmt.Errorf("alternatives: link %s is already managed by %s", sl.Link, found.Name)
		}
		if ok {
			if other := found.Slave(sl.Name); other == nil {
				for _, other2 := range found.Slaves {
					if other2.Link == sl.Link && other2.Name != sl.Name {
						return fmt.Errorf("alternatives: link %s is already managed by %s (slave of %s)",
							sl.Link, other2.Name, found.Name)
					}
				}
			}
		}
	}

	return nil
}

// Install registers or updates a link group with a new choice, folding
// in any provided slaves, and applies the resulting symlink changes
// (update-alternatives.c's --install handling in main, minus argument
// parsing).
func (db *Db) Install(name, link, path string, priority int, slaves []SlaveSpec) (*Group, error) {
	if err := db.CheckInstallArgs(name, link, path, slaves); err != nil {
		return nil, err
	}

	incoming := NewGroup(name)
	incoming.SetStatus(StatusAuto)
	incoming.SetLink(link)

	choice := &Choice{Path: path, Priority: priority, Slaves: map[string]string{}}
	for _, sl := range slaves {
		incoming.AddSlave(sl.Name, sl.Link)
		choice.Slaves[sl.Name] = sl.File
	}

	existing, ok, err := db.Load(name)
	if err != nil {
		return nil, err
	}

	var g *Group
	var currentChoice string
	if ok {
		currentChoice, err = existing.Current(db.AltDir)
		if err != nil {
			return nil, err
		}
		// SelectMode must see the choice set as it stood before this
		// install adds its new choice, same as before Evolve/AddChoice.
		if err := existing.SelectMode(db.AltDir); err != nil {
			return nil, err
		}
		if err := existing.Evolve(incoming, currentChoice, choice); err != nil {
			return nil, err
		}
		g = existing
	} else {
		g = incoming
	}
	g.AddChoice(choice)

	var newChoice string
	if g.Status == StatusAuto {
		if best := g.Best(); best != nil {
			newChoice = best.Path
		}
	}

	if err := db.Update(g, currentChoice, newChoice); err != nil {
		return nil, err
	}
	return g, nil
}
