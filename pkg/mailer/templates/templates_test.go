package templates

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fields struct {
	keys   []string
	values map[string]string
}

func newFields(kv ...string) fields {
	f := fields{values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		f.keys = append(f.keys, kv[i])
		f.values[kv[i]] = kv[i+1]
	}
	return f
}

func (f fields) Keys() []string        { return f.keys }
func (f fields) Get(key string) string { return f.values[key] }

var now = time.Date(2026, time.May, 4, 9, 30, 0, 0, time.UTC)

func TestRenderUnknownTokensPassThrough(t *testing.T) {
	got := Render("Hi {{NAME}}, code {{UNKNOWN}}", Data{Name: "Ava", Now: now})
	assert.Equal(t, "Hi Ava, code {{UNKNOWN}}", got)
}

func TestRenderNameIgnoresCase(t *testing.T) {
	f := newFields("First Name", "Ava", "To", "ava@example.com")
	d := Data{Fields: f, Name: f.Get("First Name"), Email: f.Get("To"), Now: now}

	for _, tpl := range []string{"{{NAME}}", "{{name}}", "{{Name}}", "{{ name }}", "{{FIRST_NAME}}", "{{first name}}"} {
		assert.Equal(t, "Ava", Render(tpl, d), tpl)
	}
}

func TestRenderColumnsAndReservedTokens(t *testing.T) {
	f := newFields(
		"First Name", "Ava",
		"To", "ava@example.com",
		"Company", "ACME",
		"Event-Date", "May 14th",
		"Notes", "   ",
		"Email", "column@example.com",
	)
	d := Data{Fields: f, Name: "Ava", Email: "ava@example.com", Now: now}

	tpl := "<p>{{COMPANY}} | {{EVENT_DATE}} | [{{NOTES}}] | {{DATE}} | {{EMAIL}} | {{TO}}</p>"
	assert.Equal(t, "<p>ACME | May 14th | [] | May 04, 2026 | ava@example.com | ava@example.com</p>", Render(tpl, d))
}

func TestRenderIsPure(t *testing.T) {
	f := newFields("First Name", "Ava", "City", "Lisbon")
	d := Data{Fields: f, Name: "Ava", Now: now}
	tpl := "{{NAME}} from {{CITY}} on {{DATE}} {{MISSING}}"

	first := Render(tpl, d)
	assert.Equal(t, first, Render(tpl, d))
	assert.Equal(t, "Ava from Lisbon on May 04, 2026 {{MISSING}}", first)
}

func TestRenderLeavesOtherBracesAlone(t *testing.T) {
	tpl := "body { color: red; } {{ }} {NAME} {{NAME}"
	assert.Equal(t, tpl, Render(tpl, Data{Name: "Ava", Now: now}))
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "FIRST_NAME", NormalizeToken(" First  Name "))
	assert.Equal(t, "EVENT_DATE", NormalizeToken("event-date"))
	assert.Equal(t, "CC", NormalizeToken("cc"))
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "email_template.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>Hi {{NAME}}</p>"), 0o600))

	tpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi {{NAME}}</p>", tpl)

	_, err = LoadTemplate(filepath.Join(dir, "absent.html"))
	assert.ErrorIs(t, err, ErrMissingTemplate)

	blank := filepath.Join(dir, "blank.html")
	require.NoError(t, os.WriteFile(blank, []byte(" \n\t"), 0o600))
	_, err = LoadTemplate(blank)
	assert.ErrorIs(t, err, ErrMissingTemplate)
}

func TestDefaultHTML(t *testing.T) {
	html := DefaultHTML()
	assert.Contains(t, html, "{{NAME}}")
	assert.Contains(t, html, "{{DATE}}")
}
