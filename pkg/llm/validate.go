package llm

import "fmt"

// Validate checks req against the rules every backend enforces before
// sending: a non-empty message list, known roles, and well-formed parts.
// It does not check Model; backends resolve defaults first.
func (req CompletionRequest) Validate() error {
	if len(req.Messages) == 0 {
		return &RequestError{Field: "messages", Reason: "must not be empty"}
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return &RequestError{Field: fmt.Sprintf("messages[%d].role", i), Reason: fmt.Sprintf("unknown role %q", m.Role)}
		}
		for j, p := range m.Parts {
			field := fmt.Sprintf("messages[%d].parts[%d]", i, j)
			switch p.Kind {
			case PartText:
			case PartImage:
				if p.ImageURL == "" {
					return &RequestError{Field: field, Reason: "image part without url"}
				}
				switch p.Detail {
				case "", DetailAuto, DetailLow, DetailHigh:
				default:
					return &RequestError{Field: field, Reason: fmt.Sprintf("unknown image detail %q", p.Detail)}
				}
			default:
				return &RequestError{Field: field, Reason: fmt.Sprintf("unknown part kind %q", p.Kind)}
			}
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return &RequestError{Field: "temperature", Reason: "must be within [0, 2]"}
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return &RequestError{Field: "max_tokens", Reason: "must be positive"}
	}
	for i, f := range req.Functions {
		if f.Name == "" {
			return &RequestError{Field: fmt.Sprintf("functions[%d].name", i), Reason: "must not be empty"}
		}
	}
	return nil
}
