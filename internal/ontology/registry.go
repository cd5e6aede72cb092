package ontology

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/collate"
)

type mimePrefixEntry struct {
	prefix  string
	service string
}

type pathAssignment struct {
	path    string
	service string
}

// Registry is the process-lifetime catalogue of ServiceTypes and Fields
// (§4.1). A Registry is safe for concurrent reads once Load has returned;
// RegisterPathAssignment may be called at any time.
type Registry struct {
	collator *collate.Collator

	mu sync.RWMutex

	byName map[string]*ServiceType // keyed by collation key
	byID   map[int]*ServiceType

	fieldsByName map[string]*Field
	fieldsByID   map[int]*Field

	mimeExact    map[string]string // mime -> service name
	mimePrefixes []mimePrefixEntry

	paths []pathAssignment

	nextServiceID int
	nextFieldID   int
}

// New returns an empty Registry. Call Load to populate it from description
// files; ServiceTypes and Fields have no other way in.
func New() *Registry {
	return &Registry{
		collator:      newCollator(),
		byName:        make(map[string]*ServiceType),
		byID:          make(map[int]*ServiceType),
		fieldsByName:  make(map[string]*Field),
		fieldsByID:    make(map[int]*Field),
		mimeExact:     make(map[string]string),
		nextServiceID: 1,
		nextFieldID:   1,
	}
}

// Load enumerates description files (*.description) under dir and ingests
// every ServiceType/Field group found. A malformed group is logged and
// skipped; loading continues (§4.1 "Failure semantics").
func (r *Registry) Load(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ontology: read %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".description") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		groups, err := parseDescriptionFile(path)
		if err != nil {
			slog.Warn("ontology: failed to read description file", "path", path, "error", err)
			continue
		}
		for _, g := range groups {
			r.ingestGroup(g, path)
		}
	}
	return nil
}

func (r *Registry) ingestGroup(g group, sourcePath string) {
	switch {
	case g.values["DataType"] != "":
		r.ingestField(g, sourcePath)
	default:
		r.ingestServiceType(g, sourcePath)
	}
}

func (r *Registry) ingestServiceType(g group, sourcePath string) {
	kind := DBKind(strings.ToLower(g.str("Database")))
	if kind == "" {
		kind = DBFile
	}

	st := &ServiceType{
		Name:            g.name,
		Parent:          g.str("Parents"),
		Enabled:         !boolString(g.values["Enabled"]).isSetFalse(),
		Embedded:        g.boolean("Embedded"),
		HasMetadata:     g.boolean("HasMetadata"),
		HasFullText:     g.boolean("HasFullText"),
		HasThumbs:       g.boolean("HasThumbs"),
		ShowFiles:       g.boolean("ShowFiles"),
		ShowDirectories: g.boolean("ShowDirectories"),
		ContentMetadata: g.str("ContentMetadata"),
		DB:              kind,
		Mimes:           g.list("Mimes"),
		MimePrefixes:    g.list("MimePrefixes"),
	}
	keyMeta := g.list("TabularMetadata")
	for i := 0; i < len(keyMeta) && i < len(st.KeyMetadata); i++ {
		st.KeyMetadata[i] = keyMeta[i]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, err := strconv.Atoi(g.str("ID")); err == nil && id > 0 {
		st.ID = id
	} else {
		st.ID = r.nextServiceID
	}
	if st.ID >= r.nextServiceID {
		r.nextServiceID = st.ID + 1
	}

	key := collationKey(r.collator, st.Name)
	r.byName[key] = st
	r.byID[st.ID] = st

	for _, m := range st.Mimes {
		r.mimeExact[m] = st.Name
	}
	for _, p := range st.MimePrefixes {
		r.mimePrefixes = append(r.mimePrefixes, mimePrefixEntry{prefix: p, service: st.Name})
	}
	_ = sourcePath
}

func (r *Registry) ingestField(g group, sourcePath string) {
	kind, ok := ParseFieldKind(g.str("DataType"))
	if !ok {
		slog.Warn("ontology: unknown field DataType, skipping", "field", g.name, "type", g.str("DataType"), "source", sourcePath)
		return
	}

	f := &Field{
		Name:           g.name,
		Kind:           kind,
		Weight:         g.integer("Weight"),
		Embedded:       g.boolean("Embedded"),
		MultipleValues: g.boolean("MultipleValues"),
		Delimited:      g.boolean("Delimited"),
		Filtered:       g.boolean("Filtered"),
		StoreMetadata:  g.boolean("StoreMetadata"),
		Aliases:        g.list("Parents"),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, err := strconv.Atoi(g.str("ID")); err == nil && id > 0 {
		f.ID = id
	} else {
		f.ID = r.nextFieldID
	}
	if f.ID >= r.nextFieldID {
		r.nextFieldID = f.ID + 1
	}

	r.fieldsByName[f.Name] = f
	r.fieldsByID[f.ID] = f
}

// ServiceByName resolves a ServiceType by name, case-insensitively.
func (r *Registry) ServiceByName(name string) (*ServiceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byName[collationKey(r.collator, name)]
	return st, ok
}

// ServiceByID resolves a ServiceType by its stable integer id.
func (r *Registry) ServiceByID(id int) (*ServiceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byID[id]
	return st, ok
}

// ServiceCount returns the number of loaded ServiceTypes, for status
// reporting (§SPEC_FULL.md D).
func (r *Registry) ServiceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// FieldByName resolves a Field by its colon-delimited name.
func (r *Registry) FieldByName(name string) (*Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fieldsByName[name]
	return f, ok
}

// FieldByID resolves a Field by its stable integer id.
func (r *Registry) FieldByID(id int) (*Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fieldsByID[id]
	return f, ok
}

// ResolveFieldAliases expands a field name reference through the alias
// table into the full set of field ids it maps to (§4.5, xesam query
// translation: "each referenced name expands into the set of database
// field ids it maps to").
func (r *Registry) ResolveFieldAliases(name string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[int]struct{}{}
	var ids []int
	var walk func(n string)
	walk = func(n string) {
		f, ok := r.fieldsByName[n]
		if !ok {
			return
		}
		if _, dup := seen[f.ID]; dup {
			return
		}
		seen[f.ID] = struct{}{}
		ids = append(ids, f.ID)
		for _, child := range r.allFieldsWithParent(n) {
			walk(child)
		}
	}
	walk(name)
	return ids
}

func (r *Registry) allFieldsWithParent(parent string) []string {
	var names []string
	for _, f := range r.fieldsByName {
		for _, alias := range f.Aliases {
			if alias == parent {
				names = append(names, f.Name)
			}
		}
	}
	return names
}

// MimeToService resolves a MIME string to a service name: exact match
// first, then the first matching registered prefix, else "Other"
// (§4.1 "MIME → service resolution").
func (r *Registry) MimeToService(mime string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if svc, ok := r.mimeExact[mime]; ok {
		return svc
	}
	for _, p := range r.mimePrefixes {
		if strings.HasPrefix(mime, p.prefix) {
			return p.service
		}
	}
	return "Other"
}

// RegisterPathAssignment binds path (and everything under it) to a service
// name, consulted by ServiceByPath via descending-prefix match.
func (r *Registry) RegisterPathAssignment(path, serviceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, pathAssignment{path: path, service: serviceName})
	sort.Slice(r.paths, func(i, j int) bool { return len(r.paths[i].path) > len(r.paths[j].path) })
}

// ServiceByPath resolves a filesystem path to its assigned service name by
// descending-prefix match, or "" if nothing was assigned.
func (r *Registry) ServiceByPath(path string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.paths {
		if strings.HasPrefix(path, a.path) {
			return a.service
		}
	}
	return ""
}

// boolString is a tiny helper so zero-value "" doesn't read as "explicitly
// disabled" for the Enabled attribute (default is enabled unless the
// description file says Enabled=false).
type boolString string

func (b boolString) isSetFalse() bool {
	v := strings.ToLower(strings.TrimSpace(string(b)))
	return v == "false" || v == "no" || v == "0"
}
