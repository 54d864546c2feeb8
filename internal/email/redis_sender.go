package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"homelet/api/internal/config"
)

// MockEmailTTL is how long a mock email stays readable in Redis.
const MockEmailTTL = 5 * time.Minute

// MockEmailKey is the Redis key a RedisSender stores the latest email for recipient and template under.
func MockEmailKey(to, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(to), templateID)
}

// RedisSender implements the Sender interface by storing emails in Redis.
// Used with MOCK_SERVICES so end-to-end tests can read invite codes back.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

// NewRedisSender creates a new RedisSender
func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{
		client: client,
		cfg:    cfg,
	}
}

// Send stores a JSON representation of the email keyed by its first recipient and template.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := TemplateOf(rawMessage)

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	emailData := map[string]interface{}{
		"to":          strings.Join(to, ", "),
		"from":        s.cfg.SmtpFromAddress,
		"subject":     subject,
		"body":        string(rawMessage),
		"sent_at":     time.Now().UTC().Format(time.RFC3339Nano),
		"template_id": templateID,
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, templateID)
	if err := s.client.Set(ctx, key, jsonData, MockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, MockEmailTTL, strings.Join(to, ", "), subject)
	return nil
}
