package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"natours_echo/internal/models"
	"natours_echo/internal/services"
	"natours_echo/web/templates/pages"
)

// SendEmailArgs are the arguments of a send_email task
type SendEmailArgs struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	Template string `json:"template"`
	Subject  string `json:"subject"`
	URL      string `json:"url"`
}

// SendEmailTaskDef renders a transactional email and sends it
type SendEmailTaskDef struct {
	Mailer services.Mailer
}

func (t *SendEmailTaskDef) TaskID() string {
	return "send_email"
}

// CreateTask builds a task due now, retried up to three times
func (t *SendEmailTaskDef) CreateTask(args SendEmailArgs) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, time.Now(), nil, models.ScheduledTaskTypeOneTime, 3)
}

func (t *SendEmailTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
	if t.Mailer == nil {
		return nil, fmt.Errorf("no mailer configured")
	}

	var parsed SendEmailArgs
	if err := decodeArgs(args, &parsed); err != nil {
		return nil, err
	}
	if parsed.To == "" {
		return nil, fmt.Errorf("recipient is missing")
	}

	component, ok := pages.Email(parsed.Template, pages.NewEmailProps(parsed.Name, parsed.URL))
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", parsed.Template)
	}
	body, err := pages.RenderString(ctx, component)
	if err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}

	if err := t.Mailer.SendEmail([]string{parsed.To}, parsed.Subject, body); err != nil {
		return nil, err
	}

	log.Infof("[Task: send_email] %s sent to %s", parsed.Template, parsed.To)
	return map[string]interface{}{
		"status":   "success",
		"template": parsed.Template,
		"to":       parsed.To,
	}, nil
}

// SendEmailTask is the singleton instance of SendEmailTaskDef
var SendEmailTask = &SendEmailTaskDef{}

// WelcomeEmail builds the welcome email task for a new user
func WelcomeEmail(user *models.User, url string) (*models.ScheduledTask, error) {
	return SendEmailTask.CreateTask(SendEmailArgs{
		To:       user.Email,
		Name:     user.Name,
		Template: pages.EmailWelcome,
		Subject:  "Welcome to the Natours Family!",
		URL:      url,
	})
}

// PasswordResetEmail builds the password reset email task
func PasswordResetEmail(user *models.User, url string) (*models.ScheduledTask, error) {
	return SendEmailTask.CreateTask(SendEmailArgs{
		To:       user.Email,
		Name:     user.Name,
		Template: pages.EmailPasswordReset,
		Subject:  "Your password reset token (valid for only 10 minutes)",
		URL:      url,
	})
}
