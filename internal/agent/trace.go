package agent

import (
	"encoding/json"

	"github.com/raphaelgruber/docqa/internal/models"
	"github.com/raphaelgruber/docqa/internal/tools"
)

// State is a position in the per-query state machine.
type State string

const (
	StateStart             State = "START"
	StateRetrieving        State = "RETRIEVING"
	StateDocumentAnswer    State = "DOCUMENT_ANSWER"
	StateFallbackKnowledge State = "FALLBACK_KNOWLEDGE"
	StateDone              State = "DONE"
)

// Step is one tool invocation. The set of implementations is closed:
// RetrievalStep and KnowledgeStep.
type Step interface {
	Tool() models.ToolName
	step()
}

// RetrievalStep records a vector_search call.
type RetrievalStep struct {
	Input  tools.RetrievalInput
	Output models.RetrievalResult
}

func (RetrievalStep) Tool() models.ToolName { return models.ToolRetrieval }
func (RetrievalStep) step()                 {}

// MarshalJSON renders the step as {action, input, output}.
func (s RetrievalStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepJSON{Action: s.Tool(), Input: s.Input, Output: s.Output})
}

// KnowledgeStep records a general_knowledge call. Err is set when the
// tool failed, in which case Output is zero.
type KnowledgeStep struct {
	Input  tools.KnowledgeInput
	Output models.KnowledgeResult
	Err    string
}

func (KnowledgeStep) Tool() models.ToolName { return models.ToolKnowledge }
func (KnowledgeStep) step()                 {}

// Succeeded reports whether the tool produced an answer.
func (s KnowledgeStep) Succeeded() bool {
	return s.Err == "" && s.Output.Answer != ""
}

func (s KnowledgeStep) MarshalJSON() ([]byte, error) {
	var output any = s.Output
	if s.Err != "" {
		output = map[string]string{"error": s.Err}
	}
	return json.Marshal(stepJSON{Action: s.Tool(), Input: s.Input, Output: output})
}

type stepJSON struct {
	Action models.ToolName `json:"action"`
	Input  any             `json:"input"`
	Output any             `json:"output"`
}

// Trace is the ordered record of tool invocations for one query.
type Trace []Step

// ToolsUsed returns unique tool names in order of first use.
func (t Trace) ToolsUsed() []string {
	names := make([]models.ToolName, len(t))
	for i, s := range t {
		names[i] = s.Tool()
	}
	return models.UniqueTools(names)
}

// Source derives the answer attribution from the trace: documents when
// retrieval found passages, AI knowledge when the fallback answered,
// unknown otherwise.
func (t Trace) Source() models.Source {
	for _, s := range t {
		switch v := s.(type) {
		case RetrievalStep:
			if v.Output.Found {
				return models.SourceDocuments
			}
		case KnowledgeStep:
			if v.Succeeded() {
				return models.SourceKnowledge
			}
		}
	}
	return models.SourceUnknown
}

// MarshalJSON keeps an empty trace as [] rather than null.
func (t Trace) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Step(t))
}
