package models

// Passage is a bounded span of ingested text stored for retrieval.
// Passages are immutable once produced by the chunker.
type Passage struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Metadata keys written by the chunker and the ingest service.
const (
	MetaPosition = "position"
	MetaOffset   = "offset"
	MetaSource   = "source"
	MetaFilename = "filename"
)

// Clone returns a copy of the passage with its own metadata map.
func (p Passage) Clone() Passage {
	meta := make(map[string]any, len(p.Metadata))
	for k, v := range p.Metadata {
		meta[k] = v
	}
	return Passage{Content: p.Content, Metadata: meta}
}
