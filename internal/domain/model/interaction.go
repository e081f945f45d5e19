package model

// Blind labels offered by the playground. Provider and model behind a label
// are resolved by the backend only.
const (
	BlindAlpha  = "alpha"
	BlindBeta   = "beta"
	BlindCustom = "custom"
)

// BlindLabels lists the selectable blind slots in display order.
var BlindLabels = []string{BlindAlpha, BlindBeta, BlindCustom}

// ValidBlind reports whether label is a selectable blind slot.
func ValidBlind(label string) bool {
	for _, b := range BlindLabels {
		if b == label {
			return true
		}
	}
	return false
}

// Interaction is one recorded prompt/response exchange. Immutable once created.
type Interaction struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id,omitempty"`
	UserEmail  string `json:"user_email"`
	TeamID     string `json:"team_id,omitempty"`
	ExerciseID string `json:"exercise_id,omitempty"`
	Blind      string `json:"blind"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Prompt     string `json:"prompt"`
	Response   string `json:"response"`
	TS         string `json:"ts"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Prompt         string `json:"prompt" validate:"required"`
	Blind          string `json:"blind" validate:"required,blind"`
	ExerciseID     string `json:"exercise_id,omitempty"`
	CustomEndpoint string `json:"custom_endpoint,omitempty" validate:"omitempty,url"`
	CustomKey      string `json:"custom_key,omitempty"`
}

// InteractionFilter scopes GET /interactions.
type InteractionFilter struct {
	UserEmail  string
	TeamID     string
	ExerciseID string
}

// Query renders the filter as query parameters; empty values are dropped.
func (f InteractionFilter) Query() map[string]string {
	return map[string]string{
		"user_email":  f.UserEmail,
		"team_id":     f.TeamID,
		"exercise_id": f.ExerciseID,
	}
}
