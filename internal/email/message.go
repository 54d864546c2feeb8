package email

import (
	"bufio"
	"bytes"
	"fmt"
	"net/textproto"
	"strings"
	"time"
)

// TemplateHeader names the template a message was rendered from.
const TemplateHeader = "X-Homelet-Template"

// Message is a rendered plain-text email.
type Message struct {
	From       string
	To         string
	Subject    string
	Body       string
	TemplateID string
	Date       time.Time
}

// Bytes formats the message with its headers, CRLF line endings included.
func (m Message) Bytes() []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", m.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", m.From))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", m.Subject))
	sb.WriteString("Date: " + m.Date.Format(time.RFC1123Z) + "\r\n")
	if m.TemplateID != "" {
		sb.WriteString(fmt.Sprintf("%s: %s\r\n", TemplateHeader, m.TemplateID))
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(m.Body)
	if !strings.HasSuffix(m.Body, "\r\n") {
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// TemplateOf returns the template id recorded in a raw message, or "unknown".
func TemplateOf(rawMessage []byte) string {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(rawMessage)))
	header, err := reader.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return "unknown"
	}
	if id := header.Get(TemplateHeader); id != "" {
		return id
	}
	return "unknown"
}
