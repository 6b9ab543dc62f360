package services

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestSendEmail(t *testing.T) {
	svc := NewEmailService("smtp.example.com", "587", "portal@example.com", "secret", "")

	var gotAddr, gotFrom string
	var gotMsg []byte
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotMsg = addr, from, msg
		return nil
	}

	if err := svc.SendEmail([]string{"amina@example.com"}, "Payment received", "Thanks"); err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "portal@example.com" {
		t.Errorf("addr=%s from=%s", gotAddr, gotFrom)
	}
	msg := string(gotMsg)
	for _, want := range []string{"To: amina@example.com\r\n", "Subject: Payment received\r\n", "Content-Type: text/plain; charset=\"utf-8\"\r\n", "\r\n\r\nThanks\r\n"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	svc.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 try later") }
	if err := svc.SendEmail([]string{"amina@example.com"}, "s", "b"); err == nil || !strings.Contains(err.Error(), "421") {
		t.Errorf("SendEmail() error = %v, want wrapped smtp error", err)
	}
}

func TestSendEmailNotConfigured(t *testing.T) {
	svc := NewEmailService("", "", "", "", "")
	if err := svc.SendEmail([]string{"a@example.com"}, "s", "b"); err == nil {
		t.Error("expected an error without SMTP credentials")
	}
}
