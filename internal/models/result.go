package models

// ToolName identifies one of the two agent capabilities.
type ToolName string

const (
	ToolRetrieval ToolName = "vector_search"
	ToolKnowledge ToolName = "general_knowledge"
)

// Source attributes the final answer to the capability that produced it.
type Source string

const (
	SourceDocuments Source = "documents"
	SourceKnowledge Source = "AI knowledge"
	SourceUnknown   Source = "unknown"
)

// RetrievalResult is the output of the retrieval tool.
// Found is false when the index had no matches or the search failed;
// in the failure case Diagnostic carries the reason.
type RetrievalResult struct {
	Found      bool     `json:"found"`
	Passages   []string `json:"passages"`
	Diagnostic string   `json:"diagnostic,omitempty"`
}

// NotFound returns an empty result with no diagnostic.
func NotFound() RetrievalResult {
	return RetrievalResult{Found: false, Passages: []string{}}
}

// ToolFailure returns a not-found result carrying the failure reason.
func ToolFailure(reason string) RetrievalResult {
	return RetrievalResult{Found: false, Passages: []string{}, Diagnostic: reason}
}

// Failed reports whether the result represents a search failure rather than
// an empty match set.
func (r RetrievalResult) Failed() bool {
	return !r.Found && r.Diagnostic != ""
}

// KnowledgeResult is the output of the general knowledge tool.
type KnowledgeResult struct {
	Answer string `json:"answer"`
	Source Source `json:"source"`
}
