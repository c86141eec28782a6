package services

import (
	"net/netip"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"phishguard/internal/domain/models"
)

var (
	urlSuspiciousKeywords = NewKeywordSet("login", "verify", "update", "bank", "secure", "account")
	urlLoginVerify        = NewKeywordSet("login", "verify")
	pageUrgentWords       = NewKeywordSet("urgent", "verify", "suspend", "limited time", "click now")

	ipv4Pattern = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
)

const (
	urlSpecialChars    = "-_?=&"
	tooManyLinksCutoff = 50
)

// urlFeatureNames is the wire order shared with the trained URL classifier.
// Reordering it invalidates every persisted URL model.
var urlFeatureNames = []string{
	"url_length",
	"has_ip",
	"has_at_symbol",
	"subdomain_count",
	"is_https",
	"special_char_count",
	"has_suspicious_keyword",
	"has_login_verify",
	"has_too_many_links",
	"has_urgent_words",
}

// URLFeatureExtractor turns a URL plus page context into the 10-slot URL vector.
// It holds no state and is safe for concurrent use.
type URLFeatureExtractor struct{}

// NewURLFeatureExtractor creates a new URL feature extractor
func NewURLFeatureExtractor() *URLFeatureExtractor {
	return &URLFeatureExtractor{}
}

// Extract computes all URL features. It never fails; a host that cannot be
// split yields subdomain_count = 0.
func (fe *URLFeatureExtractor) Extract(rawURL, pageText string, linksCount int) models.URLFeatures {
	u := strings.TrimSpace(strings.ToLower(rawURL))

	return models.URLFeatures{
		URLLength:            utf8.RuneCountInString(u),
		HasIP:                boolToInt(ipv4Pattern.MatchString(u)),
		HasAtSymbol:          boolToInt(strings.Contains(u, "@")),
		SubdomainCount:       countSubdomains(u),
		IsHTTPS:              boolToInt(strings.HasPrefix(u, "https")),
		SpecialCharCount:     countAnyOf(u, urlSpecialChars),
		HasSuspiciousKeyword: boolToInt(urlSuspiciousKeywords.ContainsAny(u)),
		HasLoginVerify:       boolToInt(urlLoginVerify.ContainsAny(u)),
		HasTooManyLinks:      boolToInt(linksCount > tooManyLinksCutoff),
		HasUrgentWords:       boolToInt(pageUrgentWords.ContainsAny(strings.ToLower(pageText))),
	}
}

// ExtractVector returns the features as an ordered vector
func (fe *URLFeatureExtractor) ExtractVector(rawURL, pageText string, linksCount int) models.FeatureVector {
	return models.FeatureVector{
		Type:   models.ModelTypeURL,
		Names:  fe.FeatureNames(),
		Values: fe.Extract(rawURL, pageText, linksCount).Values(),
	}
}

// FeatureNames returns the ordered list of URL feature names
func (fe *URLFeatureExtractor) FeatureNames() []string {
	out := make([]string, len(urlFeatureNames))
	copy(out, urlFeatureNames)
	return out
}

// countSubdomains returns the hostname's label count minus domain and TLD.
// The URL gets an http:// scheme for splitting when it has none.
func countSubdomains(u string) int {
	withScheme := u
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		withScheme = "http://" + u
	}

	host, ok := splitHostname(withScheme)
	if !ok {
		return 0
	}
	return max(0, len(strings.Split(host, "."))-2)
}

// splitHostname extracts the host without validating the port or percent
// escapes, so hostile URLs still yield their labels. The netloc runs from
// "//" to the first '/', '?' or '#', userinfo ends at the last '@' and the
// port starts at the first ':' outside brackets. ok is false only for
// unbalanced brackets, a bracketed host that is not an IPv6 or IPvFuture
// literal, or a non-ASCII netloc whose NFKC form gains a separator.
func splitHostname(rawURL string) (string, bool) {
	u := strings.NewReplacer("\t", "", "\r", "", "\n", "").Replace(rawURL)

	if i := strings.IndexByte(u, ':'); i > 0 && isScheme(u[:i]) {
		u = u[i+1:]
	}
	if !strings.HasPrefix(u, "//") {
		return "", true
	}
	netloc := u[2:]
	if i := strings.IndexAny(netloc, "/?#"); i >= 0 {
		netloc = netloc[:i]
	}

	hasOpen, hasClose := strings.Contains(netloc, "["), strings.Contains(netloc, "]")
	if hasOpen != hasClose {
		return "", false
	}
	if hasOpen && !validBracketedNetloc(netloc) {
		return "", false
	}
	if !stableUnderNFKC(netloc) {
		return "", false
	}

	hostinfo := netloc[strings.LastIndexByte(netloc, '@')+1:]
	var host string
	if _, bracketed, found := strings.Cut(hostinfo, "["); found {
		host, _, _ = strings.Cut(bracketed, "]")
	} else {
		host, _, _ = strings.Cut(hostinfo, ":")
	}
	return strings.ToLower(host), true
}

func isScheme(s string) bool {
	if s == "" || !isASCIILetter(rune(s[0])) {
		return false
	}
	for _, c := range s {
		if !isASCIILetter(c) && !('0' <= c && c <= '9') && !strings.ContainsRune("+-.", c) {
			return false
		}
	}
	return true
}

func isASCIILetter(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

var ipvFuturePattern = regexp.MustCompile(`^v[a-fA-F0-9]+\..+$`)

// validBracketedNetloc checks the text between the first '[' and the next ']'
func validBracketedNetloc(netloc string) bool {
	_, rest, _ := strings.Cut(netloc, "[")
	host, _, _ := strings.Cut(rest, "]")

	if strings.HasPrefix(host, "v") {
		return ipvFuturePattern.MatchString(host)
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.Is6()
}

// stableUnderNFKC rejects netlocs where compatibility normalization would
// introduce a character that changes how the URL splits
func stableUnderNFKC(netloc string) bool {
	if isASCII(netloc) {
		return true
	}
	n := strings.NewReplacer("@", "", ":", "", "#", "", "?", "").Replace(netloc)
	normalized := norm.NFKC.String(n)
	if normalized == n {
		return true
	}
	return !strings.ContainsAny(normalized, "/?#@:")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// countAnyOf counts runes of s that appear in chars
func countAnyOf(s, chars string) int {
	count := 0
	for _, c := range s {
		if strings.ContainsRune(chars, c) {
			count++
		}
	}
	return count
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
