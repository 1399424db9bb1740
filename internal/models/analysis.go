package models

// ValidationAnalysis is the structured result of validating an idea,
// regardless of which provider produced it.
type ValidationAnalysis struct {
	Score      int      `json:"score"` // 0-100
	Verdict    string   `json:"verdict"`
	Strengths  []string `json:"strengths"`
	Risks      []string `json:"risks"`
	NextSteps  []string `json:"next_steps"`
	Provider   string   `json:"provider,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
}

// ValidateRequest is the inbound payload for synchronous idea validation.
type ValidateRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	TargetMarket string `json:"target_market,omitempty"`
	Email        string `json:"email,omitempty"`
}
