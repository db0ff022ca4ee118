package logging

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// RedactPattern is an additional redaction rule.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Redactor removes customer data and transfer credentials from log fields.
type Redactor struct {
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey         = "api_key"
	PatternEmail          = "email"
	PatternPhone          = "phone"
	PatternIPv4           = "ipv4"
	PatternPassword       = "password"
	PatternBearerToken    = "bearer_token"
	PatternURLCredentials = "url_credentials"
)

var defaultPatterns = map[string]struct {
	regex       string
	replacement string
}{
	// SendGrid and Mailgun keys
	PatternAPIKey: {
		regex:       `(SG\.[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]{8,}|key-[a-f0-9]{16,})`,
		replacement: "***",
	},

	// user:password@ in ftp://, sftp:// and http URLs; must run before email
	PatternURLCredentials: {
		regex:       `([a-z][a-z0-9+.\-]*://)[^/\s:@]+:[^/\s@]+@`,
		replacement: "$1***@",
	},

	PatternEmail: {
		regex:       `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		replacement: "***@***",
	},

	// international format only, so dates and amounts survive
	PatternPhone: {
		regex:       `\+\d[\d\s().\-]{7,}\d`,
		replacement: "***",
	},

	PatternIPv4: {
		regex:       `\b(\d{1,3})\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
		replacement: "$1.*.*.*",
	},

	PatternBearerToken: {
		regex:       `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
		replacement: "Bearer ***",
	},

	PatternPassword: {
		regex:       `(password|passwd|pwd|passphrase)[:=]\s*[^\s]+`,
		replacement: "$1: ***",
	},
}

// applyOrder lists built-ins that must run before the rest.
var applyOrder = []string{PatternURLCredentials, PatternAPIKey, PatternIPv4}

// NewRedactor creates a Redactor with the built-in patterns followed by
// custom. Invalid custom patterns are skipped.
func NewRedactor(custom []RedactPattern) *Redactor {
	r := &Redactor{}

	seen := make(map[string]bool)
	add := func(name string) {
		p := defaultPatterns[name]
		r.patterns = append(r.patterns, &redactPattern{
			name:        name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
		seen[name] = true
	}
	for _, name := range applyOrder {
		add(name)
	}
	rest := make([]string, 0, len(defaultPatterns))
	for name := range defaultPatterns {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		add(name)
	}

	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		})
	}
	return r
}

// Len returns the number of active patterns.
func (r *Redactor) Len() int {
	return len(r.patterns)
}

// RedactString redacts PII from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr redacts one slog attribute. Values of sensitive keys are
// replaced entirely, other string values are pattern-matched.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch {
	case v.Kind() == slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case isSensitiveKey(a.Key):
		return slog.String(a.Key, "***")
	case v.Kind() == slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case v.Kind() == slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range []string{
		"password", "passwd", "passphrase",
		"secret", "token", "api_key", "apikey",
		"authorization", "private_key",
	} {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactEmail redacts an email address partially (shows first char and domain).
func RedactEmail(email string) string {
	user, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}
	if user == "" {
		return "***@" + domain
	}
	return user[:1] + "***@" + domain
}
