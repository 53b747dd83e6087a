package cli

import (
	"fmt"
	"strings"
)

// resolvePersonID accepts an id or a case-insensitive name.
func resolvePersonID(app *App, input string) (string, error) {
	people := app.State.Snapshot().People
	return resolve("person", input, len(people), func(i int) (string, string) {
		return people[i].ID, people[i].Name
	})
}

// resolveProjectID accepts an id or a case-insensitive name.
func resolveProjectID(app *App, input string) (string, error) {
	projects := app.State.Snapshot().Projects
	return resolve("project", input, len(projects), func(i int) (string, string) {
		return projects[i].ID, projects[i].Name
	})
}

func resolve(kind, input string, n int, at func(int) (id, name string)) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%s is required", kind)
	}

	for i := 0; i < n; i++ {
		if id, _ := at(i); id == input {
			return id, nil
		}
	}

	var matches []string
	for i := 0; i < n; i++ {
		if id, name := at(i); strings.EqualFold(name, input) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s not found: %q", kind, input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%s name %q is ambiguous (%d matches), use the id", kind, input, len(matches))
	}
}
