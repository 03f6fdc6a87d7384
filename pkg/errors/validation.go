package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateReference validates a diagram file reference taken from a directive.
// References are resolved relative to the page that contains them, so parent
// segments are allowed; the resolver checks the final path stays inside the
// source tree.
//
// Validation rules:
//   - Reference cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No backslashes (Windows-style paths)
func ValidateReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return New(ErrCodeInvalidPath, "file reference cannot be empty")
	}

	const maxRefLength = 500
	if len(ref) > maxRefLength {
		return New(ErrCodeInvalidPath, "file reference too long (max %d characters)", maxRefLength)
	}

	for _, r := range ref {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "file reference contains invalid characters")
		}
	}

	if strings.Contains(ref, "\\") {
		return New(ErrCodeInvalidPath, "file reference cannot contain backslashes")
	}

	return nil
}

// ValidateAlign checks an alignment hint against the closed set left/center/right.
// The empty string means "no alignment" and is accepted.
func ValidateAlign(align string) error {
	switch align {
	case "", "left", "center", "right":
		return nil
	}
	return New(ErrCodeInvalidAlign, "align must be one of left, center, right, got %q", align)
}

// identifierRegex matches element identifiers usable both as HTML id values
// and inside a quoted CSS attribute selector.
var identifierRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_:.-]*$`)

// ValidateIdentifier validates an element id or zoom identifier.
func ValidateIdentifier(id string) error {
	if !identifierRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid element identifier: %q", id)
	}
	return nil
}

// ValidateScriptURL validates a script location from configuration.
// Remote URLs must use http or https; anything without a scheme is treated as a
// path relative to the generated site and must not contain quotes or whitespace.
func ValidateScriptURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidConfig, "script URL cannot be empty")
	}

	if strings.ContainsAny(rawURL, "\"'`<> \t\r\n") {
		return New(ErrCodeInvalidConfig, "script URL contains invalid characters: %q", rawURL)
	}

	if i := strings.Index(rawURL, "://"); i >= 0 {
		scheme := rawURL[:i]
		if scheme != "http" && scheme != "https" {
			return New(ErrCodeInvalidConfig, "script URL must use http or https scheme: %q", rawURL)
		}
	}

	return nil
}

// cssSizeRegex matches the CSS length values accepted for diagram dimensions.
var cssSizeRegex = regexp.MustCompile(`^(auto|[0-9]+(\.[0-9]+)?(px|%|em|rem|vh|vw)?)$`)

// ValidateCSSSize validates a CSS length such as "100%" or "500px".
func ValidateCSSSize(size string) error {
	if !cssSizeRegex.MatchString(size) {
		return New(ErrCodeInvalidConfig, "invalid CSS size: %q", size)
	}
	return nil
}

// classRefRegex matches dotted class or namespace references ("pkg.Type").
var classRefRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidateClassRef validates a class-diagram reference.
func ValidateClassRef(ref string) error {
	if !classRefRegex.MatchString(ref) {
		return New(ErrCodeNaming, "invalid class or namespace reference: %q", ref)
	}
	return nil
}
