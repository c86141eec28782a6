package models

// FeatureVector is an ordered numeric encoding bound to a parallel list of names.
// The order is shared with the trained classifier.
type FeatureVector struct {
	Type   ModelType `json:"type"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Len returns the number of slots
func (v FeatureVector) Len() int {
	return len(v.Values)
}

// Map returns name -> value pairs
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Names))
	for i, name := range v.Names {
		if i < len(v.Values) {
			m[name] = v.Values[i]
		}
	}
	return m
}

// URLFeatures holds the 10 URL features by name
type URLFeatures struct {
	URLLength            int `json:"url_length"`
	HasIP                int `json:"has_ip"`
	HasAtSymbol          int `json:"has_at_symbol"`
	SubdomainCount       int `json:"subdomain_count"`
	IsHTTPS              int `json:"is_https"`
	SpecialCharCount     int `json:"special_char_count"`
	HasSuspiciousKeyword int `json:"has_suspicious_keyword"`
	HasLoginVerify       int `json:"has_login_verify"`
	HasTooManyLinks      int `json:"has_too_many_links"`
	HasUrgentWords       int `json:"has_urgent_words"`
}

// Values returns the features in wire order
func (f URLFeatures) Values() []float64 {
	return []float64{
		float64(f.URLLength),
		float64(f.HasIP),
		float64(f.HasAtSymbol),
		float64(f.SubdomainCount),
		float64(f.IsHTTPS),
		float64(f.SpecialCharCount),
		float64(f.HasSuspiciousKeyword),
		float64(f.HasLoginVerify),
		float64(f.HasTooManyLinks),
		float64(f.HasUrgentWords),
	}
}

// EmailFeatures holds the 7 email features by name
type EmailFeatures struct {
	EmailLength            int     `json:"email_length"`
	LinkCount              int     `json:"link_count"`
	UrgentWordCount        int     `json:"urgent_word_count"`
	SuspiciousKeywordCount int     `json:"suspicious_keyword_count"`
	CapitalRatio           float64 `json:"capital_ratio"`
	ExclamationCount       int     `json:"exclamation_count"`
	AttachmentKeywordCount int     `json:"attachment_keyword_count"`
}

// Values returns the features in wire order
func (f EmailFeatures) Values() []float64 {
	return []float64{
		float64(f.EmailLength),
		float64(f.LinkCount),
		float64(f.UrgentWordCount),
		float64(f.SuspiciousKeywordCount),
		f.CapitalRatio,
		float64(f.ExclamationCount),
		float64(f.AttachmentKeywordCount),
	}
}
