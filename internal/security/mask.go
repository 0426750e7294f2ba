// Package security masks credentials before they reach logs, audit entries
// or resources.
package security

import (
	"net/url"
	"regexp"
	"strings"
)

// Redacted replaces a masked value
const Redacted = "***REDACTED***"

// MaskAPIKey masks an API key, showing only the first 4 and last 4 characters
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}

var sensitiveHeaders = map[string]bool{ // pragma: allowlist secret
	"authorization":              true,
	"proxy-authorization":        true,
	"x-api-key":                  true,
	"api-key":                    true,
	"apikey":                     true, // pragma: allowlist secret
	"x-auth-token":               true,
	"cookie":                     true,
	"set-cookie":                 true,
	"es-secondary-authorization": true,
}

// MaskHeaders returns a copy of headers with credential values replaced
func MaskHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	masked := make(map[string]string, len(headers))
	for key, value := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			masked[key] = Redacted
		} else {
			masked[key] = value
		}
	}
	return masked
}

// SensitivePatterns match credentials embedded in free text
var SensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:api[_-]?key)[=:]\s*["']?)([a-zA-Z0-9_=+/-]{20,})`),
	regexp.MustCompile(`(?i)((?:apikey|bearer|basic)\s+)([a-zA-Z0-9_.=+/-]{12,})`),
	regexp.MustCompile(`(?i)((?:password|passwd|pwd)[=:]\s*["']?)([^"'\s&]+)`),
	regexp.MustCompile(`(?i)((?:secret|token)[=:]\s*["']?)([a-zA-Z0-9_-]{16,})`),
}

// MaskSensitiveData masks credentials in a string using pattern matching
func MaskSensitiveData(data string) string {
	result := data
	for _, pattern := range SensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 3 {
				return parts[1] + Redacted
			}
			return Redacted
		})
	}
	return result
}

var sensitiveParams = []string{
	"api_key", "apikey", "api-key",
	"token", "access_token", "auth_token",
	"password", "passwd", "pwd",
	"secret", "key",
}

var sensitiveParamPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(sensitiveParams))
	for i, param := range sensitiveParams {
		out[i] = regexp.MustCompile(`(?i)([?&]` + regexp.QuoteMeta(param) + `=)([^&\s]+)`)
	}
	return out
}()

// MaskURL masks the userinfo password and credential query parameters in a URL or path
func MaskURL(rawURL string) string {
	result := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.User != nil {
		result = u.Redacted()
	}
	for _, pattern := range sensitiveParamPatterns {
		result = pattern.ReplaceAllString(result, "${1}"+Redacted)
	}
	return result
}

// SanitizeError removes credentials from error messages
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return MaskSensitiveData(err.Error())
}
