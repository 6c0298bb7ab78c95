package main

import (
	"context"
	"flag"

	"github.com/labstack/gommon/log"

	"natours_echo/internal/config"
	"natours_echo/internal/services"
	"natours_echo/web/templates/pages"
)

func main() {
	to := flag.String("to", "", "Recipient address")
	name := flag.String("name", "Test User", "Recipient name used in the greeting")
	template := flag.String("template", pages.EmailWelcome, "Email template: welcome or password_reset")
	flag.Parse()

	if *to == "" {
		log.Fatal("Please provide a recipient using -to flag")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	component, ok := pages.Email(*template, pages.NewEmailProps(*name, cfg.AppURL+"/me"))
	if !ok {
		log.Fatalf("Unknown template %q", *template)
	}
	body, err := pages.RenderString(context.Background(), component)
	if err != nil {
		log.Fatalf("Failed to render email: %v", err)
	}

	log.Infof("Sending %s email to %s", *template, *to)
	if err := services.NewEmailService(cfg).SendEmail([]string{*to}, "Natours test email", body); err != nil {
		log.Fatalf("Failed to send email: %v", err)
	}
	log.Info("Email sent successfully!")
}
