package services

import (
	"strings"
	"unicode/utf8"

	"phishguard/internal/domain/models"
)

var (
	emailUrgentWords     = NewKeywordSet("urgent", "immediately", "asap", "action required", "verify", "now")
	emailSuspiciousWords = NewKeywordSet("bank", "password", "account", "login", "update", "security")
	emailAttachmentWords = NewKeywordSet("invoice", "attachment", "pdf", "document", "file")
)

// emailFeatureNames is the wire order shared with the trained email classifier
var emailFeatureNames = []string{
	"email_length",
	"link_count",
	"urgent_word_count",
	"suspicious_keyword_count",
	"capital_ratio",
	"exclamation_count",
	"attachment_keyword_count",
}

// EmailFeatureExtractor turns subject, body and links into the 7-slot email vector
type EmailFeatureExtractor struct{}

// NewEmailFeatureExtractor creates a new email feature extractor
func NewEmailFeatureExtractor() *EmailFeatureExtractor {
	return &EmailFeatureExtractor{}
}

// Extract computes all email features. Keyword counts are distinct-member counts,
// not occurrence counts.
func (fe *EmailFeatureExtractor) Extract(subject, body string, links []string) models.EmailFeatures {
	text := subject + " " + body
	lower := strings.ToLower(text)

	return models.EmailFeatures{
		EmailLength:            utf8.RuneCountInString(text),
		LinkCount:              len(links),
		UrgentWordCount:        emailUrgentWords.CountDistinct(lower),
		SuspiciousKeywordCount: emailSuspiciousWords.CountDistinct(lower),
		CapitalRatio:           capitalRatio(text),
		ExclamationCount:       strings.Count(text, "!"),
		AttachmentKeywordCount: emailAttachmentWords.CountDistinct(lower),
	}
}

// ExtractVector returns the features as an ordered vector
func (fe *EmailFeatureExtractor) ExtractVector(subject, body string, links []string) models.FeatureVector {
	return models.FeatureVector{
		Type:   models.ModelTypeEmail,
		Names:  fe.FeatureNames(),
		Values: fe.Extract(subject, body, links).Values(),
	}
}

// FeatureNames returns the ordered list of email feature names
func (fe *EmailFeatureExtractor) FeatureNames() []string {
	out := make([]string, len(emailFeatureNames))
	copy(out, emailFeatureNames)
	return out
}

// capitalRatio is ASCII uppercase over ASCII letters; 0 when there are no letters
func capitalRatio(s string) float64 {
	letters, capitals := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			capitals++
			letters++
		case c >= 'a' && c <= 'z':
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(capitals) / float64(letters)
}
