package alternatives

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// LoadAll loads every registered group, silently skipping ones whose
// admin file fails to parse (update-alternatives.c's
// alternative_map_load_names, which always passes ALTDB_LAX_PARSER).
func (db *Db) LoadAll() ([]*Group, error) {
	names, err := db.ListNames()
	if err != nil {
		return nil, err
	}
	var groups []*Group
	for _, name := range names {
		g, ok, err := db.Load(name)
		if err != nil || !ok {
			continue
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// Selection is one row of a get-selections/set-selections listing.
type Selection struct {
	Name    string
	Status  Status
	Current string
}

// GetSelections reports the current status line for every registered
// group (update-alternatives.c's alternative_get_selections).
func (db *Db) GetSelections() ([]Selection, error) {
	groups, err := db.LoadAll()
	if err != nil {
		return nil, err
	}
	sels := make([]Selection, 0, len(groups))
	for _, g := range groups {
		current, err := g.Current(db.AltDir)
		if err != nil {
			return nil, err
		}
		sels = append(sels, Selection{Name: g.Name, Status: g.Status, Current: current})
	}
	sort.Slice(sels, func(i, j int) bool { return sels[i].Name < sels[j].Name })
	return sels, nil
}

// SetSelectionResult reports what happened for one parsed set-selections
// line, for the caller to report back to the administrator.
type SetSelectionResult struct {
	Name    string
	Applied bool
	Message string
}

// SetSelections replays a get-selections-formatted stream, applying each
// "name status choice" line against the current database
// (update-alternatives.c's alternative_set_selections /
// alternative_set_selection).
func (db *Db) SetSelections(r io.Reader) ([]SetSelectionResult, error) {
	groups, err := db.LoadAll()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Group, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}

	var results []SetSelectionResult
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		// Selection lines are whitespace-delimited name, status, then
		// choice (which may itself contain spaces), matching the
		// fgets-based hand parser in alternative_set_selections.
		fields := splitSelectionLine(line)
		if len(fields) != 3 {
			results = append(results, SetSelectionResult{Message: fmt.Sprintf("skip invalid line: %s", line)})
			continue
		}
		name, status, choice := fields[0], fields[1], fields[2]

		g, ok := byName[name]
		if !ok {
			results = append(results, SetSelectionResult{Name: name, Message: fmt.Sprintf("skip unknown alternative %s", name)})
			continue
		}

		var newChoice string
		switch {
		case status == "auto":
			newChoice = g.SetAuto()
		case g.HasChoice(choice):
			newChoice, err = g.SetManual(choice)
			if err != nil {
				results = append(results, SetSelectionResult{Name: name, Message: err.Error()})
				continue
			}
		default:
			results = append(results, SetSelectionResult{
				Name:    name,
				Message: fmt.Sprintf("alternative %s unchanged because choice %s is not available", name, choice),
			})
			continue
		}

		if newChoice == "" {
			results = append(results, SetSelectionResult{Name: name, Message: "no change"})
			continue
		}

		current, err := g.Current(db.AltDir)
		if err != nil {
			return results, err
		}
		if err := g.SelectMode(db.AltDir); err != nil {
			return results, err
		}
		if err := db.Update(g, current, newChoice); err != nil {
			return results, err
		}
		results = append(results, SetSelectionResult{Name: name, Applied: true})
	}
	if err := scanner.Err(); err != nil {
		return results, fmt.Errorf("alternatives: reading selections: %w", err)
	}
	return results, nil
}

// splitSelectionLine splits a "name status choice..." line on runs of
// whitespace for the first two fields only, leaving the remainder
// (which may itself contain spaces) as the third field.
func splitSelectionLine(line string) []string {
	i := 0
	n := len(line)
	skipSpace := func() {
		for i < n && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
	}
	takeField := func() string {
		start := i
		for i < n && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		return line[start:i]
	}

	skipSpace()
	name := takeField()
	if name == "" {
		return nil
	}
	skipSpace()
	status := takeField()
	if status == "" {
		return nil
	}
	skipSpace()
	if i >= n {
		return nil
	}
	choice := line[i:]
	return []string{name, status, choice}
}
