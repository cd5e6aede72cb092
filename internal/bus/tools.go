package bus

// TextSearchInput is the input schema for the text_search tool (§4.5
// "Text search contract").
type TextSearchInput struct {
	Service     string `json:"service" jsonschema:"service type name to search within, e.g. Files"`
	Text        string `json:"text" jsonschema:"the search text to tokenize and match"`
	Offset      int    `json:"offset,omitempty" jsonschema:"result offset for pagination"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 1024"`
	SaveResults bool   `json:"save_results,omitempty" jsonschema:"save the result set to search_results_1"`
	Detailed    bool   `json:"detailed,omitempty" jsonschema:"verify each hit still exists on disk"`
}

// HitOutput is one resolved search hit.
type HitOutput struct {
	ServiceID     int64  `json:"service_id"`
	ServiceTypeID int    `json:"service_type_id"`
	Path          string `json:"path"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
}

// SearchOutput wraps a hit list.
type SearchOutput struct {
	Hits []HitOutput `json:"hits"`
}

// SearchTextMimeInput is the input schema for the search_text_mime tool.
type SearchTextMimeInput struct {
	Text  string   `json:"text" jsonschema:"the search text"`
	Mimes []string `json:"mimes" jsonschema:"mime types to filter to"`
}

// SearchTextLocationInput is the input schema for the search_text_location tool.
type SearchTextLocationInput struct {
	Text     string `json:"text" jsonschema:"the search text"`
	Location string `json:"location" jsonschema:"path prefix to filter to"`
}

// SearchTextMimeLocationInput combines both filters.
type SearchTextMimeLocationInput struct {
	Text     string   `json:"text" jsonschema:"the search text"`
	Mimes    []string `json:"mimes" jsonschema:"mime types to filter to"`
	Location string   `json:"location" jsonschema:"path prefix to filter to"`
}

// SnippetInput is the input schema for the snippet tool (§4.5 "Snippet
// generation").
type SnippetInput struct {
	Text  string   `json:"text" jsonschema:"the source text to excerpt from"`
	Terms []string `json:"terms" jsonschema:"search terms to locate and highlight"`
}

// SnippetOutput wraps the generated snippet.
type SnippetOutput struct {
	Snippet string `json:"snippet"`
}

// OpenSessionInput has no parameters; a session belongs to the calling
// subscriber implicitly.
type OpenSessionInput struct{}

// OpenSessionOutput returns the new session id.
type OpenSessionOutput struct {
	SessionID string `json:"session_id"`
}

// CloseSessionInput is the input schema for the close_session tool.
type CloseSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session id returned by open_session"`
}

// NewSearchInput is the input schema for the new_search tool (§4.6
// "NewSearch(session, xml) -> search_id").
type NewSearchInput struct {
	SessionID string `json:"session_id" jsonschema:"session id returned by open_session"`
	Query     string `json:"query" jsonschema:"the xesam XML query document"`
}

// NewSearchOutput returns the new search id.
type NewSearchOutput struct {
	SearchID string `json:"search_id"`
}

// SearchIDInput is the shared input shape for tools that only take a
// search id: start_search, get_hit_count, close_search.
type SearchIDInput struct {
	SearchID string `json:"search_id" jsonschema:"search id returned by new_search"`
}

// HitCountOutput wraps a hit count.
type HitCountOutput struct {
	Count int `json:"count"`
}

// GetHitsInput is the input schema for the get_hits tool.
type GetHitsInput struct {
	SearchID string `json:"search_id"`
	Count    int    `json:"count" jsonschema:"maximum number of hit ids to return"`
}

// GetRangeHitsInput is the input schema for the get_range_hits tool.
type GetRangeHitsInput struct {
	SearchID string `json:"search_id"`
	From     int    `json:"from" jsonschema:"inclusive range start"`
	To       int    `json:"to" jsonschema:"exclusive range end"`
}

// HitIDsOutput wraps an ordered hit id list.
type HitIDsOutput struct {
	IDs []int64 `json:"ids"`
}

// GetHitDataInput is the input schema for the get_hit_data tool.
type GetHitDataInput struct {
	SearchID string  `json:"search_id"`
	IDs      []int64 `json:"ids" jsonschema:"hit ids to dereference"`
}

// HitDataEntry is one dereferenced hit's fields, or unset if the id no
// longer resolves (§4.6 "unset fields for removed ids are reported as
// unset, not an error").
type HitDataEntry struct {
	ID   int64  `json:"id"`
	Set  bool   `json:"set"`
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// GetHitDataOutput wraps the dereferenced entries.
type GetHitDataOutput struct {
	Entries []HitDataEntry `json:"entries"`
}

// OKOutput acknowledges a side-effect-only tool call (close_session,
// start_search, close_search).
type OKOutput struct {
	OK bool `json:"ok"`
}
