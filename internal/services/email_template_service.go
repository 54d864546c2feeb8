package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"homelet/api/internal/db"
	"homelet/api/internal/models"
)

// Template ids used by the background mailer.
const (
	TemplateRentalInvite    = "rental_invite"
	TemplateRentDueReminder = "rent_due_reminder"
	DefaultLocale           = "en-US"
)

// Default email templates used as fallback when not found in database
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateRentalInvite: {
		TemplateID: TemplateRentalInvite,
		Locale:     DefaultLocale,
		Subject:    "You have been invited to a rental on {{.app_name}}",
		Body: "{{.inviter_name}} invited you to join the rental of \"{{.property_title}}\".\n\n" +
			"Your invite code is {{.code}}. It expires on {{.expires_at}}.\n" +
			"Redeem it here: {{.link}}",
	},
	TemplateRentDueReminder: {
		TemplateID: TemplateRentDueReminder,
		Locale:     DefaultLocale,
		Subject:    "Rent for {{.property_title}} is due on {{.due_date}}",
		Body: "Hi {{.name}},\n\n" +
			"This is a reminder that your rent of {{.amount}} for \"{{.property_title}}\" is due on {{.due_date}}.\n\n" +
			"{{.app_name}}",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
}

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

// NewEmailTemplateService creates a new instance of EmailTemplateService
func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{
		db: db,
	}
}

// DefaultTemplate returns the built-in template for templateID.
func DefaultTemplate(templateID string) (*models.EmailTemplate, bool) {
	tmpl, ok := defaultEmailTemplates[templateID]
	if !ok {
		return nil, false
	}
	return &tmpl, true
}

// GetTemplate retrieves an email template by ID and locale, falling back to the built-in default.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	collection := s.db.Collection(db.EmailTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.EmailTemplate
	err := collection.FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if defaultTemplate, ok := DefaultTemplate(templateID); ok {
				return defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate saves an email template to the database
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	collection := s.db.Collection(db.EmailTemplatesCollection)
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}

	update := bson.M{"$set": template}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}

	return nil
}
