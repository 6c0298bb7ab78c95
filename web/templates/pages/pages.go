package pages

//go:generate templ generate

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"natours_echo/internal/models"
)

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}

func firstDate(dates []time.Time) string {
	if len(dates) == 0 {
		return "To be announced"
	}
	return dates[0].Format("January 2006")
}

func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func number(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func guideLabel(role models.Role) string {
	if role == models.RoleLeadGuide {
		return "Lead guide"
	}
	return "Tour guide"
}

// Layout is embedded by every page's props.
type Layout struct {
	Title string
	User  *models.User
}

type OverviewProps struct {
	Layout
	Tours []models.Tour
}

type TourProps struct {
	Layout
	Tour          models.Tour
	Reviews       []models.Review
	ClientKey     string
	SnapScriptURL string
}

type AccountProps struct {
	Layout
	Message string
}

type ErrorPageProps struct {
	Layout
	Code    int
	Message string
}

// EmailProps fills the transactional email templates.
type EmailProps struct {
	FirstName string
	URL       string
}

const (
	EmailWelcome       = "welcome"
	EmailPasswordReset = "password_reset"
)

var emails = map[string]func(EmailProps) templ.Component{
	EmailWelcome:       welcomeEmail,
	EmailPasswordReset: passwordResetEmail,
}

// Email returns the component for a named email template; ok is false for
// an unknown name.
func Email(name string, props EmailProps) (templ.Component, bool) {
	c, ok := emails[name]
	if !ok {
		return nil, false
	}
	return c(props), true
}

// NewEmailProps derives the greeting from a full name.
func NewEmailProps(name, url string) EmailProps {
	return EmailProps{FirstName: firstName(name), URL: url}
}

// RenderString renders a component into a string.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
