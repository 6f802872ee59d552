package tokenbroker

import "encoding/json"

// ParseAPIKeySecret extracts the provider API key from a stored secret
// value. Secrets provisioned through infrastructure templates arrive as
// {"API_KEY": "..."} JSON; manually stored ones are the plain string.
func ParseAPIKeySecret(value string) string {
	var wrapped struct {
		APIKey string `json:"API_KEY"`
	}
	if err := json.Unmarshal([]byte(value), &wrapped); err == nil && wrapped.APIKey != "" {
		return wrapped.APIKey
	}
	return value
}
