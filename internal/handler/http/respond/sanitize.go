package respond

import (
	"regexp"
)

var (
	// Provider API key patterns. The Anthropic pattern must run first
	// because "sk-ant-" is a prefix of what the generic pattern matches.
	anthropicKeyPattern = regexp.MustCompile(`sk-ant-[a-zA-Z0-9-_]+`)
	openaiKeyPattern    = regexp.MustCompile(`sk-[a-zA-Z0-9]{10,}`)

	// Credentials embedded in URLs, e.g. webhook endpoints with basic
	// auth baked into the address.
	urlCredentialPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)

	// Bearer tokens echoed back in upstream error messages.
	bearerTokenPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/-]+=*`)
)

// SanitizeError returns the error message with credentials masked.
// Upstream clients tend to include the request they sent in their
// error text, which can carry API keys and signed tokens.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	msg = anthropicKeyPattern.ReplaceAllString(msg, "sk-ant-****")
	msg = openaiKeyPattern.ReplaceAllString(msg, "sk-****")
	msg = urlCredentialPattern.ReplaceAllString(msg, "://$1:****@")
	msg = bearerTokenPattern.ReplaceAllString(msg, "Bearer ****")

	return msg
}
