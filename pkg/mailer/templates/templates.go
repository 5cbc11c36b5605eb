package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

//go:embed default.html.tmpl
var defaultHTML string

// DateLayout formats the DATE token. Month names are always English.
const DateLayout = "January 02, 2006"

// Reserved tokens, always available and taking precedence over columns.
const (
	TokenDate  = "DATE"
	TokenEmail = "EMAIL"
	TokenName  = "NAME"
)

// ErrMissingTemplate is returned when the template file cannot be used.
var ErrMissingTemplate = errors.New("missing template")

var (
	tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
	separators   = regexp.MustCompile(`[\s\-]+`)
)

// FieldSource is the per-row data a template is merged with.
type FieldSource interface {
	Keys() []string
	Get(key string) string
}

// Data holds everything a single render needs.
type Data struct {
	Fields FieldSource
	Name   string
	Email  string
	Now    time.Time
}

// NormalizeToken maps a column name or token to its lookup key:
// "First Name" and "first-name" both become "FIRST_NAME".
func NormalizeToken(s string) string {
	return separators.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "_")
}

func blankToEmpty(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}

// Values returns the normalized token -> value table for d.
func Values(d Data) map[string]string {
	out := map[string]string{}
	if d.Fields != nil {
		for _, k := range d.Fields.Keys() {
			key := NormalizeToken(k)
			if _, taken := out[key]; taken {
				continue
			}
			out[key] = blankToEmpty(d.Fields.Get(k))
		}
	}
	out[TokenDate] = d.Now.Format(DateLayout)
	out[TokenEmail] = blankToEmpty(d.Email)
	out[TokenName] = blankToEmpty(d.Name)
	return out
}

// Render replaces every {{TOKEN}} in tpl. Unknown tokens are left verbatim.
func Render(tpl string, d Data) string {
	values := Values(d)
	return tokenPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		inner := tokenPattern.FindStringSubmatch(match)[1]
		if v, ok := values[NormalizeToken(inner)]; ok {
			return v
		}
		return match
	})
}

// LoadTemplate reads a template file once per run.
func LoadTemplate(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingTemplate, err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingTemplate, path)
	}
	return string(b), nil
}

// DefaultHTML returns the starter template written by `mailmerge init`.
func DefaultHTML() string {
	return defaultHTML
}
