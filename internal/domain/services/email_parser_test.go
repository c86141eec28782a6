package services

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"testing/iotest"
)

func TestParseRawEmail_PlainText(t *testing.T) {
	raw := "From: Billing <billing@example.com>\r\n" +
		"Subject: Your invoice is ready\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"See https://pay.example/invoice/42. Or visit https://pay.example/invoice/42 again,\r\n" +
		"and https://help.example/faq for help.\r\n"

	parsed, err := ParseRawEmail(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseRawEmail() error = %v", err)
	}

	if parsed.Subject != "Your invoice is ready" {
		t.Errorf("Subject = %q", parsed.Subject)
	}
	if !strings.Contains(parsed.Body, "help.example/faq") {
		t.Errorf("Body = %q", parsed.Body)
	}

	want := []string{"https://pay.example/invoice/42", "https://help.example/faq"}
	if !slices.Equal(parsed.Links, want) {
		t.Errorf("Links = %v, want %v", parsed.Links, want)
	}
}

func TestParseRawEmail_HTMLOnly(t *testing.T) {
	raw := "From: security@bank.example\r\n" +
		"Subject: Action required\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		`<html><body><p>Your account is locked.</p>` +
		`<a href="https://bank.example.evil/unlock">Unlock now</a>` +
		`<a href="#top">Top</a>` +
		`<a href="mailto:help@bank.example">Contact</a>` +
		`</body></html>` + "\r\n"

	parsed, err := ParseRawEmail(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseRawEmail() error = %v", err)
	}

	if !strings.Contains(parsed.Body, "Your account is locked.") {
		t.Errorf("Body = %q, want text converted from html", parsed.Body)
	}
	if strings.Contains(parsed.Body, "<p>") {
		t.Errorf("Body = %q still contains markup", parsed.Body)
	}
	if !strings.Contains(parsed.Body, "Unlock now") || strings.Contains(parsed.Body, "bank.example.evil") {
		t.Errorf("Body = %q, want anchor text without its link target", parsed.Body)
	}
	if !slices.Contains(parsed.Links, "https://bank.example.evil/unlock") {
		t.Errorf("Links = %v, want the anchor target", parsed.Links)
	}
	if !slices.Contains(parsed.Links, "mailto:help@bank.example") {
		t.Errorf("Links = %v, want the mailto target", parsed.Links)
	}
	if slices.Contains(parsed.Links, "#top") {
		t.Errorf("Links = %v, fragment links must be skipped", parsed.Links)
	}
}

func TestParseRawEmail_NoLinks(t *testing.T) {
	raw := "Subject: hi\r\n\r\nnothing to see\r\n"

	parsed, err := ParseRawEmail(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseRawEmail() error = %v", err)
	}
	if parsed.Links == nil || len(parsed.Links) != 0 {
		t.Errorf("Links = %#v, want empty non-nil slice", parsed.Links)
	}
}

func TestParseRawEmail_ReadError(t *testing.T) {
	_, err := ParseRawEmail(iotest.ErrReader(errors.New("connection reset")))
	if !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("ParseRawEmail() error = %v, want ErrMalformedRequest", err)
	}
}
