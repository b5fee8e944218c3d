package models

// WebhookPayload represents the incoming JSON payload from WhatsApp
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry carries the WhatsApp Business Account id in ID.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Time    int64           `json:"time,omitempty"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string                `json:"field"`
	Value TemplateStatusPayload `json:"value"`
}

// TemplateStatusPayload is the value of a message_template_status_update change.
type TemplateStatusPayload struct {
	Event                   string `json:"event"`
	MessageTemplateID       int64  `json:"message_template_id"`
	MessageTemplateName     string `json:"message_template_name"`
	MessageTemplateLanguage string `json:"message_template_language"`
	Reason                  string `json:"reason,omitempty"`
}

const FieldTemplateStatusUpdate = "message_template_status_update"
