package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"text/template"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"homelet/api/internal/config"
	"homelet/api/internal/email"
	"homelet/api/internal/models"
	"homelet/api/internal/repository"
	"homelet/api/internal/services"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
	TypeRentDueScan   = "rental:reminder:scan"
)

// Queue names, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// IAsynqClient is the subset of *asynq.Client used to enqueue tasks.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// --- Task Client (Enqueuing tasks) ---

// RedisOpt builds asynq connection options from an existing Redis client.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(RedisOpt(rdb))
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	emailTemplateService services.IEmailTemplateService
	stores               repository.Stores
	taskClient           IAsynqClient
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	emailTemplateService services.IEmailTemplateService,
	stores repository.Stores,
	taskClient IAsynqClient,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		emailTemplateService: emailTemplateService,
		stores:               stores,
		taskClient:           taskClient,
	}
}

// Mux registers every task handler.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, p.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeRentDueScan, p.HandleRentDueScanTask)
	return mux
}

// SetupServer configures an Asynq server instance. The caller starts it with the processor's Mux.
func SetupServer(rdb *redis.Client) *asynq.Server {
	return asynq.NewServer(
		RedisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
}

// SetupScheduler registers the periodic rent due scan.
func SetupScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(rdb), &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	entryID, err := scheduler.Register(cfg.ReminderScanCron, asynq.NewTask(TypeRentDueScan, nil), asynq.Queue(QueueLow), asynq.MaxRetry(1))
	if err != nil {
		return nil, fmt.Errorf("failed to register %s on schedule %q: %w", TypeRentDueScan, cfg.ReminderScanCron, err)
	}
	log.Printf("Registered %s (%s) as scheduler entry %s", TypeRentDueScan, cfg.ReminderScanCron, entryID)
	return scheduler, nil
}

// --- Task Handlers ---

// EmailTaskPayload is the payload of TypeEmailDelivery.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// NewEmailTask builds a TypeEmailDelivery task.
func NewEmailTask(payload EmailTaskPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, payloadBytes, opts...), nil
}

func render(name, text string, data map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HandleEmailDeliveryTask renders the requested template and sends it.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}

	log.Printf("Sending email task: To=%s, Template=%s", payload.To, payload.TemplateID)

	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}

	tmpl, err := p.emailTemplateService.GetTemplate(ctx, payload.TemplateID, locale)
	if err != nil {
		log.Printf("Error getting email template %s/%s: %v", payload.TemplateID, locale, err)
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	subject, err := render(payload.TemplateID+".subject", tmpl.Subject, payload.Data)
	if err != nil {
		return fmt.Errorf("failed to render subject of %s: %v: %w", payload.TemplateID, err, asynq.SkipRetry)
	}
	body, err := render(payload.TemplateID+".body", tmpl.Body, payload.Data)
	if err != nil {
		return fmt.Errorf("failed to render body of %s: %v: %w", payload.TemplateID, err, asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	msg := email.Message{
		From:       fromAddress,
		To:         payload.To,
		Subject:    subject,
		Body:       body,
		TemplateID: payload.TemplateID,
		Date:       time.Now(),
	}
	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, msg.Bytes()); err != nil {
		log.Printf("Email sending failed: %v", err)
		return err
	}

	log.Printf("Email task processed successfully: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

// RentDueScanPayload is the payload of TypeRentDueScan. AsOf defaults to now.
type RentDueScanPayload struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// HandleRentDueScanTask queues one reminder per rental and due date for
// active rentals whose next due date falls within the reminder lead time.
func (p *TaskProcessor) HandleRentDueScanTask(ctx context.Context, t *asynq.Task) error {
	var payload RentDueScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal rent due scan payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	now := time.Now().UTC()
	if payload.AsOf != nil {
		now = payload.AsOf.UTC()
	}
	until := now.Add(p.cfg.ReminderLeadTime)

	log.Printf("Starting rent due scan for due dates in [%s, %s]", now.Format(time.RFC3339), until.Format(time.RFC3339))

	rentals, err := p.stores.Rentals.FindDue(ctx, now, until)
	if err != nil {
		log.Printf("Error finding due rentals: %v", err)
		return err
	}

	queued := 0
	for i := range rentals {
		rental := &rentals[i]
		ok, err := p.remindRental(ctx, rental, now)
		if err != nil {
			log.Printf("Error reminding rental %d: %v. Skipping.", rental.ID, err)
			continue
		}
		if ok {
			queued++
		}
	}

	log.Printf("Rent due scan finished. %d of %d due rentals reminded.", queued, len(rentals))
	return nil
}

// remindRental reports false when the due date was already reminded.
func (p *TaskProcessor) remindRental(ctx context.Context, rental *models.Rental, now time.Time) (bool, error) {
	borrower, err := p.stores.Users.FindByID(ctx, *rental.BorrowerID)
	if err != nil {
		return false, fmt.Errorf("failed to load borrower %d: %w", *rental.BorrowerID, err)
	}
	if borrower.Email == "" {
		return false, fmt.Errorf("borrower %d has no email", borrower.ID)
	}
	propertyTitle := ""
	if property, err := p.stores.Properties.FindByID(ctx, rental.PropertyID); err == nil {
		propertyTitle = property.Title
	}

	err = p.stores.Reminders.Record(ctx, models.ReminderLog{RentalID: rental.ID, DueDate: rental.NextDueDate, SentAt: now})
	if errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record reminder: %w", err)
	}

	task, err := NewEmailTask(EmailTaskPayload{
		To:         borrower.Email,
		TemplateID: services.TemplateRentDueReminder,
		Data: map[string]interface{}{
			"name":           borrower.Name,
			"property_title": propertyTitle,
			"amount":         fmt.Sprintf("%.2f", rental.RentAmount),
			"due_date":       rental.NextDueDate.Format("2 January 2006"),
			"app_name":       p.cfg.AppName,
		},
	}, asynq.Queue(QueueDefault))
	if err != nil {
		return false, err
	}
	if _, err := p.taskClient.EnqueueContext(ctx, task); err != nil {
		return false, fmt.Errorf("failed to enqueue reminder email: %w", err)
	}
	return true, nil
}
