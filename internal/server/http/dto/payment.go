package dto

// WebhookPayload is the subset of the gateway invoice callback the service reads.
type WebhookPayload struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

// WebhookResponse acknowledges a callback with its outcome tag.
type WebhookResponse struct {
	Status string `json:"status"`
}
