package models

// EmailTemplate defines the structure for email templates stored in the DB.
type EmailTemplate struct {
	TemplateID string `bson:"template_id" json:"template_id"` // e.g., "rental_invite", "rent_due_reminder"
	Locale     string `bson:"locale" json:"locale"`           // e.g., "en-US", "fr-FR"
	Subject    string `bson:"subject" json:"subject"`         // Subject template
	Body       string `bson:"body" json:"body"`               // Body template (plain text)
}
