package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileSender implements the Sender interface by appending email
// content to a file. Useful for local runs where no provider is wired.
type FileSender struct {
	filePath string
}

// NewFileSender creates a new FileSender. It ensures the directory for
// the log file exists.
func NewFileSender(filePath string) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}

	return &FileSender{filePath: filePath}, nil
}

// Send writes the message to the configured file. Attachments are
// recorded by name and size only.
func (s *FileSender) Send(ctx context.Context, msg *Message) error {
	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("--- Email logged at %s ---\n", time.Now().Format(time.RFC3339Nano)))
	sb.WriteString(fmt.Sprintf("To: %s\n", strings.Join(msg.To, ", ")))
	if len(msg.Bcc) > 0 {
		sb.WriteString(fmt.Sprintf("Bcc: %s\n", strings.Join(msg.Bcc, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Subject: %s\n", msg.Subject))
	for _, att := range msg.Attachments {
		sb.WriteString(fmt.Sprintf("Attachment: %s (%d bytes)\n", att.Filename, len(att.Content)))
	}
	sb.WriteString("\n")
	sb.WriteString(msg.Text)
	sb.WriteString("\n--- End logged email ---\n\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	return nil
}
