package alternatives

import "fmt"

func (db *Db) mustLoad(name string) (*Group, error) {
	g, ok, err := db.Load(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("alternatives: no alternatives for %s", name)
	}
	return g, nil
}

// Set pins name to path (update-alternatives --set) and applies the
// resulting link changes.
func (db *Db) Set(name, path string) error {
	g, err := db.mustLoad(name)
	if err != nil {
		return err
	}
	current, err := g.Current(db.AltDir)
	if err != nil {
		return err
	}
	newChoice, err := g.SetManual(path)
	if err != nil {
		return err
	}
	if err := g.SelectMode(db.AltDir); err != nil {
		return err
	}
	return db.Update(g, current, newChoice)
}

// Auto switches name back to automatic mode (update-alternatives --auto).
func (db *Db) Auto(name string) error {
	g, err := db.mustLoad(name)
	if err != nil {
		return err
	}
	current, err := g.Current(db.AltDir)
	if err != nil {
		return err
	}
	newChoice := g.SetAuto()
	if err := g.SelectMode(db.AltDir); err != nil {
		return err
	}
	return db.Update(g, current, newChoice)
}

// RemoveChoice drops path from name's choices and repairs the link group
// (update-alternatives --remove). It is not an error to remove a choice
// that was never registered; the call becomes a no-op repair pass.
func (db *Db) RemoveChoice(name, path string) error {
	g, ok, err := db.Load(name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	current, err := g.Current(db.AltDir)
	if err != nil {
		return err
	}
	// SelectMode must run against the choice set as it stood before this
	// removal: it decides whether the admin hand-edited the link, which
	// only makes sense relative to the previously registered choices.
	if err := g.SelectMode(db.AltDir); err != nil {
		return err
	}
	newChoice := g.Remove(current, path)
	return db.Update(g, current, newChoice)
}

// RemoveAll drops every choice for name, tearing its link group down
// entirely (update-alternatives --remove-all).
func (db *Db) RemoveAll(name string) error {
	g, err := db.mustLoad(name)
	if err != nil {
		return err
	}
	current, err := g.Current(db.AltDir)
	if err != nil {
		return err
	}
	if err := g.SelectMode(db.AltDir); err != nil {
		return err
	}
	g.RemoveAll()
	return db.Update(g, current, "")
}

// ChoiceView is one row of a Display's alternative listing.
type ChoiceView struct {
	Path     string
	Priority int
	Slaves   map[string]string
}

// Display is the full picture of one link group, the data backing both
// --display/--query output.
type Display struct {
	Name    string
	Link    string
	Status  Status
	Best    string
	Current string
	Slaves  []*SlaveLink
	Choices []ChoiceView
}

// Query loads and summarizes name for --display/--query
// (update-alternatives.c's alternative_display_user/alternative_display_query
// share this same data; only the rendering differs, left to the caller).
func (db *Db) Query(name string) (*Display, error) {
	g, err := db.mustLoad(name)
	if err != nil {
		return nil, err
	}
	current, err := g.Current(db.AltDir)
	if err != nil {
		return nil, err
	}
	d := &Display{
		Name:    g.Name,
		Link:    g.Link,
		Status:  g.Status,
		Current: current,
		Slaves:  g.Slaves,
	}
	if best := g.Best(); best != nil {
		d.Best = best.Path
	}
	for _, c := range g.Choices {
		d.Choices = append(d.Choices, ChoiceView{Path: c.Path, Priority: c.Priority, Slaves: c.Slaves})
	}
	return d, nil
}

// List returns the registered choice paths for name (update-alternatives
// --list).
func (db *Db) List(name string) ([]string, error) {
	g, err := db.mustLoad(name)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(g.Choices))
	for i, c := range g.Choices {
		paths[i] = c.Path
	}
	return paths, nil
}
