package ontology

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// group is one [EntityName] section of a description file: an ordered set
// of key/value pairs. List-valued keys are comma-or-semicolon separated
// (§4.1 "Ontology description file format").
type group struct {
	name   string
	values map[string]string
}

func (g group) str(key string) string {
	return g.values[key]
}

func (g group) list(key string) []string {
	raw := g.values[key]
	if raw == "" {
		return nil
	}
	raw = strings.NewReplacer(";", ",").Replace(raw)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (g group) boolean(key string) bool {
	v := strings.ToLower(strings.TrimSpace(g.values[key]))
	return v == "true" || v == "yes" || v == "1"
}

func (g group) integer(key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(g.values[key]))
	return n
}

// parseDescriptionFile reads a grouped key/value file: lines starting with
// '#' or ';' are comments, blank lines are ignored, "[Name]" opens a group,
// "Key=Value" sets an attribute within the current group.
func parseDescriptionFile(path string) ([]group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var groups []group
	var cur *group

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if cur != nil {
				groups = append(groups, *cur)
			}
			cur = &group{name: strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"), values: map[string]string{}}
			continue
		}
		if cur == nil {
			continue // malformed: key before any group header, skip (§4.1 failure semantics)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		cur.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if cur != nil {
		groups = append(groups, *cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return groups, nil
}
