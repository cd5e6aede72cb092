// Package ontology is the in-memory catalogue of ServiceTypes and Fields,
// loaded once at startup from grouped key/value description files, plus
// MIME→service and path→service resolution (§4.1).
package ontology

// FieldKind selects the backing table a Field's values live in.
type FieldKind int

const (
	FieldKeyword FieldKind = iota
	FieldIndex
	FieldFullText
	FieldString
	FieldInteger
	FieldDouble
	FieldDate
	FieldBlob
)

var fieldKindNames = map[string]FieldKind{
	"Keyword":  FieldKeyword,
	"Index":    FieldIndex,
	"FullText": FieldFullText,
	"String":   FieldString,
	"Integer":  FieldInteger,
	"Double":   FieldDouble,
	"Date":     FieldDate,
	"Blob":     FieldBlob,
}

// ParseFieldKind resolves a DataType string to a FieldKind. ok is false for
// an unrecognised name (§4.1 "a malformed key ... is logged and skipped").
func ParseFieldKind(s string) (FieldKind, bool) {
	k, ok := fieldKindNames[s]
	return k, ok
}

func (k FieldKind) String() string {
	for name, kind := range fieldKindNames {
		if kind == k {
			return name
		}
	}
	return "Unknown"
}

// DBKind is the underlying database a ServiceType's rows live in.
type DBKind string

const (
	DBFile  DBKind = "file"
	DBEmail DBKind = "email"
	DBData  DBKind = "data"
	DBXesam DBKind = "xesam"
)

// ServiceType is a class of indexable service (e.g. Files, Documents,
// EvolutionEmails). Forms a tree via Parent. Immutable once loaded.
type ServiceType struct {
	ID   int
	Name string

	Parent string
	Enabled bool

	Embedded        bool
	HasMetadata     bool
	HasFullText     bool
	HasThumbs       bool
	ShowFiles       bool
	ShowDirectories bool

	ContentMetadata string
	KeyMetadata     [11]string // KeyMetadata1..11, unused slots are ""

	DB DBKind

	Mimes        []string
	MimePrefixes []string
}

// Field is a metadata type (colon-delimited name, e.g. "File:Mime").
// Immutable once loaded.
type Field struct {
	ID   int
	Name string
	Kind FieldKind

	Weight int

	Embedded       bool
	MultipleValues bool
	Delimited      bool
	Filtered       bool
	StoreMetadata  bool

	// Aliases lists other field names that resolve to this field (the
	// "Parents" list key in a Field description group).
	Aliases []string
}
