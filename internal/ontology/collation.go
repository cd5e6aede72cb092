package ontology

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collationKey returns a locale-aware, case-folded sort/lookup key for s,
// used to key the by-name ServiceType index so "Files" and "files" resolve
// to the same entry (§4.1 "by service name (case-insensitive via
// locale-collation key)").
func collationKey(c *collate.Collator, s string) string {
	var buf collate.Buffer
	return string(c.Key(&buf, []byte(s)))
}

func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.Loose)
}
