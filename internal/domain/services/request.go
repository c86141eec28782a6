package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"phishguard/internal/domain/models"
)

// DecodeURLRequest coerces a decoded JSON object into a URL request.
// Only a missing url or a field of the wrong shape is rejected.
func DecodeURLRequest(raw map[string]any) (models.URLPredictRequest, error) {
	var req models.URLPredictRequest
	if raw == nil {
		return req, malformed("", "request body must be a JSON object")
	}

	v, ok := raw["url"]
	if !ok || v == nil {
		return req, malformed("url", "field required")
	}
	u, err := textField("url", v)
	if err != nil {
		return req, err
	}
	req.URL = u

	if req.PageText, err = textField("page_text", raw["page_text"]); err != nil {
		return req, err
	}
	if req.LinksCount, err = countField("links_count", raw["links_count"]); err != nil {
		return req, err
	}
	if req.ReturnFeatures, err = flagField("return_features", raw["return_features"]); err != nil {
		return req, err
	}
	return req, nil
}

// DecodeEmailRequest coerces a decoded JSON object into an email request.
// Every field is optional.
func DecodeEmailRequest(raw map[string]any) (models.EmailPredictRequest, error) {
	var req models.EmailPredictRequest
	if raw == nil {
		return req, malformed("", "request body must be a JSON object")
	}

	var err error
	if req.Subject, err = textField("subject", raw["subject"]); err != nil {
		return req, err
	}
	if req.Body, err = textField("body", raw["body"]); err != nil {
		return req, err
	}

	switch links := raw["links"].(type) {
	case nil, []any, []string:
		req.Links = NormalizeLinks(links)
	default:
		return req, malformed("links", "must be an array of strings")
	}

	if req.ReturnFeatures, err = flagField("return_features", raw["return_features"]); err != nil {
		return req, err
	}
	return req, nil
}

// textField accepts any scalar; objects and arrays are the wrong shape
func textField(name string, v any) (string, error) {
	switch v.(type) {
	case map[string]any, []any:
		return "", malformed(name, "must be a string")
	}
	return Normalize(v), nil
}

// countField accepts a non-negative integer given as a JSON number or numeric string
func countField(name string, v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			f = float64(i)
		} else if f, err = n.Float64(); err != nil {
			return 0, malformed(name, "must be an integer")
		}
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, malformed(name, "must be an integer")
		}
		f = float64(i)
	default:
		return 0, malformed(name, "must be an integer")
	}

	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, malformed(name, "must be an integer")
	}
	if f < 0 {
		return 0, malformed(name, "must be non-negative")
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	return int(f), nil
}

// flagField accepts a JSON boolean or a boolean-looking string
func flagField(name string, v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, malformed(name, "must be a boolean")
		}
		return parsed, nil
	default:
		return false, malformed(name, "must be a boolean")
	}
}

// DecodeURLBatchRequest coerces {"urls": [...], "return_features": bool}.
// Each entry is either a bare URL string or a URL request object; the
// top-level return_features applies to entries that do not set their own.
func DecodeURLBatchRequest(raw map[string]any) ([]models.URLPredictRequest, error) {
	if raw == nil {
		return nil, malformed("", "request body must be a JSON object")
	}

	items, ok := raw["urls"].([]any)
	if !ok {
		return nil, malformed("urls", "field required")
	}
	if len(items) == 0 {
		return nil, malformed("urls", "at least one url is required")
	}
	if len(items) > MaxBatchSize {
		return nil, malformed("urls", "maximum %d urls per batch", MaxBatchSize)
	}

	returnFeatures, err := flagField("return_features", raw["return_features"])
	if err != nil {
		return nil, err
	}

	reqs := make([]models.URLPredictRequest, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			reqs[i] = models.URLPredictRequest{URL: v, ReturnFeatures: returnFeatures}
		case map[string]any:
			req, err := DecodeURLRequest(v)
			if err != nil {
				return nil, malformed(fmt.Sprintf("urls[%d]", i), "%v", err)
			}
			if _, set := v["return_features"]; !set {
				req.ReturnFeatures = returnFeatures
			}
			reqs[i] = req
		default:
			return nil, malformed(fmt.Sprintf("urls[%d]", i), "must be a string or an object")
		}
	}
	return reqs, nil
}
