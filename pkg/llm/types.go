package llm

// Role identifies the author of a [Message]. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ImageDetail is the resolution hint sent with an image part.
type ImageDetail string

const (
	DetailAuto ImageDetail = "auto"
	DetailLow  ImageDetail = "low"
	DetailHigh ImageDetail = "high"
)

// PartKind discriminates [ContentPart].
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image_url"
)

// ContentPart is one element of a multimodal message body.
type ContentPart struct {
	// Kind selects which of the remaining fields is meaningful.
	Kind PartKind

	// Text is the payload of a [PartText] part.
	Text string

	// ImageURL is an http(s) or data: URL for a [PartImage] part.
	ImageURL string

	// Detail is the optional resolution hint for a [PartImage] part.
	// Empty lets the upstream decide.
	Detail ImageDetail
}

// TextPart builds a text [ContentPart].
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// ImagePart builds an image [ContentPart].
func ImagePart(url string, detail ImageDetail) ContentPart {
	return ContentPart{Kind: PartImage, ImageURL: url, Detail: detail}
}

// Message is a single entry in a conversation.
//
// A message is either plain text (Parts is nil) or multimodal (Parts is
// non-empty, Content is ignored).
type Message struct {
	// Role is the author of the message.
	Role Role

	// Content is the text body of a plain message.
	Content string

	// Parts is the body of a multimodal message.
	Parts []ContentPart
}

// Multimodal reports whether the message carries a part list.
func (m Message) Multimodal() bool { return len(m.Parts) > 0 }

// Text returns the textual content of m. For multimodal messages the text
// parts are concatenated in order, separated by newlines.
func (m Message) Text() string {
	if !m.Multimodal() {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Kind != PartText {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// SystemMessage returns a plain system message.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }

// UserMessage returns a plain user message.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// AssistantMessage returns a plain assistant message.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// FunctionDefinition describes a callable function offered to the model.
type FunctionDefinition struct {
	// Name is the function's unique identifier.
	Name string

	// Description is shown to the model and should say when to call it.
	Description string

	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
}

// FunctionCall is a function invocation requested by the model.
type FunctionCall struct {
	// ID is the upstream-assigned call identifier. May be empty.
	ID string

	// Name is the function to invoke.
	Name string

	// Arguments are the decoded call arguments. Never nil on calls produced
	// by a backend; empty when the model sent undecodable arguments.
	Arguments map[string]any

	// RawArguments is the JSON text exactly as the model produced it.
	RawArguments string
}

// CompletionRequest carries everything needed to ask for one completion.
// Optional tuning fields are pointers; nil means "let the upstream decide"
// and the field is omitted from the wire request.
type CompletionRequest struct {
	// Model selects the upstream model. When empty the backend falls back to
	// its configured default; if that is also empty the request is rejected.
	Model string

	// Messages is the ordered conversation. Must be non-empty.
	Messages []Message

	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64

	// Stop lists sequences at which generation halts.
	Stop []string

	// Functions is the set of function definitions offered to the model.
	Functions []FunctionDefinition
}

// Usage holds token accounting reported by the upstream. Zero when the
// upstream did not report it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResult is the outcome of a blocking completion.
type CompletionResult struct {
	// ID is the upstream completion identifier. Empty when not reported.
	ID string

	// Text is the assistant reply. Empty when the upstream returned no
	// content, for example when it replied with function calls only.
	Text string

	// Model is the model the upstream reports having used.
	Model string

	// FinishReason is the upstream stop reason ("stop", "length", ...).
	FinishReason string

	// FunctionCalls lists the function invocations the model requested.
	FunctionCalls []FunctionCall

	// Usage is the token accounting for the request.
	Usage Usage
}

// Float returns a pointer to v, for the optional fields of [CompletionRequest].
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for the optional fields of [CompletionRequest].
func Int(v int) *int { return &v }
