package outbound

import "context"

// UsageRecord is one usage-accounting event emitted after a successful
// provider call.
type UsageRecord struct {
	TenantID   string `json:"tenant_id"`
	Model      string `json:"model"`
	Channel    string `json:"channel"`
	TokenCount int    `json:"token_count"`
	TextCount  int    `json:"text_count"`
}

// UsageMeter records embedding usage for billing. Recording is best-effort:
// implementations swallow their own failures and must never block or fail
// the embedding call.
type UsageMeter interface {
	Record(ctx context.Context, record UsageRecord)
}
