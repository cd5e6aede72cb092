package query

import "github.com/trackerd/trackerd/internal/ontology"

// groupExpansion mirrors tracker-search.c's hardcoded umbrella-service
// table: a handful of names fan out into several concrete service types
// before the text search intersects against them (§4.5 step 2).
var groupExpansion = map[string][]string{
	"Files":         {"Files", "Folders", "Documents", "Images", "Music", "Videos", "Text", "Development", "Other"},
	"Emails":        {"EvolutionEmails", "KMailEmails", "ThunderbirdEmails"},
	"Conversations": {"GaimConversations"},
}

// expandService resolves a service name to the set of service-type ids it
// covers. Names outside groupExpansion resolve to themselves.
func expandService(reg *ontology.Registry, service string) []int {
	names, ok := groupExpansion[service]
	if !ok {
		names = []string{service}
	}
	ids := make([]int, 0, len(names))
	for _, n := range names {
		if st, ok := reg.ServiceByName(n); ok {
			ids = append(ids, st.ID)
		}
	}
	return ids
}
