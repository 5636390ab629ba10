package alternatives

import "fmt"

// SetAuto switches the group to automatic mode and reports the choice
// that should now be installed, or "" if the group has no choices at all
// (update-alternatives.c's alternative_set_auto).
func (g *Group) SetAuto() string {
	g.SetStatus(StatusAuto)
	best := g.Best()
	if best == nil {
		return ""
	}
	return best.Path
}

// SetManual pins the group to path, switching to manual mode, and fails
// if path isn't a registered choice (alternative_set_manual).
func (g *Group) SetManual(path string) (string, error) {
	if !g.HasChoice(path) {
		return "", fmt.Errorf("alternatives: choice %s for %s is not registered; not setting", path, g.Name)
	}
	g.SetStatus(StatusManual)
	return path, nil
}

// Remove drops path from the group's choices. If it was the currently
// installed choice, a manual group falls back to auto mode and the new
// best choice (which may be "" if none remain) is returned as the
// replacement to install (alternative_remove).
func (g *Group) Remove(currentChoice, path string) string {
	g.RemoveChoice(path)

	if currentChoice == "" || currentChoice != path {
		return ""
	}
	if g.Status == StatusManual {
		g.SetStatus(StatusAuto)
	}
	if best := g.Best(); best != nil {
		return best.Path
	}
	return ""
}

// RemoveAll drops every choice, leaving the group empty so the next
// Db.Update call tears down its links entirely.
func (g *Group) RemoveAll() {
	for len(g.Choices) > 0 {
		g.RemoveChoice(g.Choices[0].Path)
	}
}
