package page

import (
	"strconv"
	"strings"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// attributes are the options of a directive in declaration order.
type attributes struct {
	keys   []string
	values map[string]string
}

func (a attributes) get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// flag reads a boolean attribute. A bare key means true.
func (a attributes) flag(key string) (bool, error) {
	v, ok := a.values[key]
	if !ok {
		return false, nil
	}
	switch v {
	case "", "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	}
	return false, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "option %q expects a boolean, got %q", key, v)
}

// parseInfo splits a fence info string such as
//
//	mermaid {align=center zoom caption="Data flow"}
//
// into the language and its attributes. Braces are optional.
func parseInfo(info string) (string, attributes, error) {
	info = strings.TrimSpace(info)
	lang, rest, _ := strings.Cut(info, " ")
	if i := strings.IndexByte(lang, '{'); i >= 0 {
		lang, rest = lang[:i], lang[i:]+" "+rest
	}
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "{") {
		if !strings.HasSuffix(rest, "}") {
			return "", attributes{}, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unterminated option list: %q", rest)
		}
		rest = rest[1 : len(rest)-1]
	}
	attrs, err := parseAttributes(rest)
	return lang, attrs, err
}

// parseAttributes reads key, key=value and key="quoted value" pairs.
func parseAttributes(s string) (attributes, error) {
	attrs := attributes{values: make(map[string]string)}
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return attrs, nil
		}

		n := 0
		for n < len(s) && isKeyByte(s[n]) {
			n++
		}
		if n == 0 {
			return attributes{}, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "malformed option list near %q", s)
		}
		key := s[:n]
		s = s[n:]

		var value string
		if strings.HasPrefix(s, "=") {
			s = s[1:]
			var err error
			value, s, err = readValue(s)
			if err != nil {
				return attributes{}, pkgerrors.Wrap(pkgerrors.ErrCodeInvalidInput, err, "option %q", key)
			}
		} else if s != "" && s[0] != ' ' && s[0] != '\t' {
			return attributes{}, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "malformed option %q", key+s)
		}

		if _, dup := attrs.values[key]; dup {
			return attributes{}, pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "option %q given twice", key)
		}
		attrs.keys = append(attrs.keys, key)
		attrs.values[key] = value
	}
}

func readValue(s string) (value, rest string, err error) {
	if !strings.HasPrefix(s, `"`) {
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			return s, "", nil
		}
		return s[:end], s[end:], nil
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			v, err := strconv.Unquote(s[:i+1])
			return v, s[i+1:], err
		}
	}
	return "", "", pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unterminated quoted value")
}

func isKeyByte(c byte) bool {
	return c == '_' || c == '-' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
