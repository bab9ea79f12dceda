// cmd/smtpcheck/main.go
//
// Sends a test email through the configured SMTP settings. Useful for
// verifying credentials before deploying.
package main

import (
	"context"
	"log"
	"os"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/email"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: smtpcheck <recipient>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	sender := email.NewSender(cfg)

	msg := email.Message{
		To:      os.Args[1],
		Subject: "Storefront SMTP test",
		Body:    "SMTP delivery is working.",
	}

	if err := sender.Send(context.Background(), msg); err != nil {
		log.Fatalf("Send failed: %v", err)
	}

	log.Println("Test email sent")
}
