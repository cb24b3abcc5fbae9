package model

import "strings"

// Provider kinds accepted by the admin settings form. Backend routing is
// decided by the credential shape, so this field is informational.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
)

// ProviderConfig is the active model-provider configuration for one
// adjudication. It is resolved fresh on every request.
type ProviderConfig struct {
	Provider        string   `json:"provider"`
	APIKey          string   `json:"apiKey"`
	JudgeModel      string   `json:"judgeModel,omitempty"`
	CoJudgeModel    string   `json:"coJudgeModel,omitempty"`
	AvailableModels []string `json:"availableModels,omitempty"`
}

// Merge overlays the non-empty fields of o onto c.
func (c ProviderConfig) Merge(o ProviderConfig) ProviderConfig {
	if o.Provider != "" {
		c.Provider = o.Provider
	}
	if strings.TrimSpace(o.APIKey) != "" {
		c.APIKey = o.APIKey
	}
	if o.JudgeModel != "" {
		c.JudgeModel = o.JudgeModel
	}
	if o.CoJudgeModel != "" {
		c.CoJudgeModel = o.CoJudgeModel
	}
	if len(o.AvailableModels) > 0 {
		c.AvailableModels = append([]string(nil), o.AvailableModels...)
	}
	return c
}

// Clone returns a copy that shares no slices with c.
func (c ProviderConfig) Clone() ProviderConfig {
	if c.AvailableModels != nil {
		c.AvailableModels = append([]string(nil), c.AvailableModels...)
	}
	return c
}

// Redacted returns a copy safe to show in admin views and logs.
func (c ProviderConfig) Redacted() ProviderConfig {
	c.APIKey = RedactKey(c.APIKey)
	return c
}

// RedactKey keeps the first and last four characters of long keys.
func RedactKey(key string) string {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return ""
	case len(key) <= 12:
		return strings.Repeat("*", len(key))
	default:
		return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
	}
}
