// Package template renders the one-time-code message body.
//
// Supported variables: {{code}}, {{minutes}}, {{app}}.
package template

import (
	"strconv"
	"strings"
)

const defaultOTPTemplate = "{{app}}: your verification code is {{code}}. It expires in {{minutes}} minutes. Do not share it."

// OTPData holds the values substituted into the message template.
type OTPData struct {
	Code    string
	Minutes int
	App     string
}

// RenderOTPMessage renders the default template.
func RenderOTPMessage(data OTPData) string {
	return Render(defaultOTPTemplate, data)
}

// Render substitutes {{var}} placeholders in body with actual values.
func Render(body string, data OTPData) string {
	replacer := strings.NewReplacer(
		"{{code}}", data.Code,
		"{{minutes}}", strconv.Itoa(data.Minutes),
		"{{app}}", data.App,
	)
	return replacer.Replace(body)
}
