package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"serviceportal/internal/config"
	"serviceportal/internal/services"
)

func notifyTestCmd() *cobra.Command {
	var (
		email string
		phone string
		msg   string
	)
	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message through the configured email or WhatsApp channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" && phone == "" {
				return fmt.Errorf("pass --email or --phone")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if email != "" {
				if cfg.SMTPHost == "" {
					return fmt.Errorf("SMTP_HOST is not set")
				}
				sender := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
				if err := sender.SendEmail([]string{email}, "Service portal test", msg); err != nil {
					return fmt.Errorf("send email: %w", err)
				}
				fmt.Printf("Email sent to %s\n", email)
			}
			if phone != "" {
				id := services.NormalizeChatID(phone)
				waha := services.NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey, cfg.WahaSession)
				if err := waha.SendMessage(context.Background(), id, msg); err != nil {
					return fmt.Errorf("send whatsapp: %w", err)
				}
				fmt.Printf("WhatsApp message sent to %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Recipient address")
	cmd.Flags().StringVar(&phone, "phone", "", "Recipient phone number, e.g. 628123456789")
	cmd.Flags().StringVar(&msg, "msg", "Test message from the service portal", "Message body")
	return cmd
}
