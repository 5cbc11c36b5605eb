package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/oksasatya/mailmerge/config"
	"github.com/oksasatya/mailmerge/pkg/mailer/templates"
)

// clearEnv unsets every variable config.Load reads so neither the host
// environment nor an earlier .env load leaks into a test. godotenv never
// overrides a variable that is set, even to "".
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "EXCEL_FILE", "OUTPUT_FILE", "EMAIL_SUBJECT", "TEMPLATE_FILE",
		"ATTACHMENTS_FOLDER", "DELAY_BETWEEN_EMAILS", "MAX_EMAILS_PER_RUN", "TEST_MODE",
		"MAIL_PROVIDER", "EMAIL_SENDER", "EMAIL_SENDER_NAME", "EMAIL_PASSWORD", "SMTP_SERVER",
		"SMTP_PORT", "MAILGUN_DOMAIN", "MAILGUN_API_KEY", "SEND_TIMEOUT",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func execute(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Out = &out
	opts.LogOutput = io.Discard
	root := NewRootCommand(opts)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScaffoldCreatesFilesOnce(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, Scaffold(&out, dir, true))

	assert.Contains(t, out.String(), "created .env")
	for _, name := range []string{".env", "email_config.json", "email_template.html", "attachments/README.txt", "sample_email_list.xlsx"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	tpl, err := os.ReadFile(filepath.Join(dir, "email_template.html"))
	require.NoError(t, err)
	assert.Equal(t, templates.DefaultHTML(), string(tpl))

	f, err := excelize.OpenFile(filepath.Join(dir, "sample_email_list.xlsx"))
	require.NoError(t, err)
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	_ = f.Close()
	assert.Equal(t, sampleRows[0], rows[0])
	assert.Len(t, rows, len(sampleRows))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EMAIL_SENDER=me@example.com\n"), 0o600))
	out.Reset()
	require.NoError(t, Scaffold(&out, dir, false))
	assert.Contains(t, out.String(), ".env already exists")
	assert.Contains(t, out.String(), "attachments/ already exists")
	b, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "EMAIL_SENDER=me@example.com\n", string(b), "existing files are not overwritten")
}

func TestScaffoldedSettingsAreValid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, Scaffold(io.Discard, dir, false))

	cfg := config.Load()
	require.NoError(t, cfg.MergeFile(filepath.Join(dir, DefaultConfigFile)))
	cfg.SenderAddress = "me@example.com"
	assert.True(t, cfg.TestMode)
	assert.Equal(t, "sample_email_list.xlsx", cfg.TableFile)
	assert.NoError(t, cfg.Validate())
}

func TestRootTestRunPreviewsAndReports(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	list := filepath.Join(dir, "list.csv")
	require.NoError(t, os.WriteFile(list, []byte("First Name,To\nAva,ava@example.com\nBo,\n"), 0o600))
	tpl := filepath.Join(dir, "template.html")
	require.NoError(t, os.WriteFile(tpl, []byte("<p>Hi {{NAME}}</p>"), 0o600))
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("EMAIL_SENDER=me@example.com\n"), 0o600))
	cfgPath := filepath.Join(dir, "email_config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		"EXCEL_FILE": "`+filepath.ToSlash(list)+`",
		"TEMPLATE_FILE": "`+filepath.ToSlash(tpl)+`",
		"ATTACHMENTS_FOLDER": "`+filepath.ToSlash(filepath.Join(dir, "none"))+`",
		"EMAIL_SUBJECT": "Hello {{NAME}}"
	}`), 0o600))

	out, err := execute(t, Options{ConfigPath: cfgPath, EnvFile: env}, "--test")
	require.NoError(t, err)

	assert.Contains(t, out, "TEST MODE - Email Preview")
	assert.Contains(t, out, "Subject: Hello Ava")
	assert.Contains(t, out, "Previewed: 1")
	assert.Contains(t, out, "Skipped: 1")
	assert.Contains(t, out, "TEST RUN")

	b, err := os.ReadFile(list)
	require.NoError(t, err)
	assert.Equal(t, "First Name,To,Email Status,Sent Timestamp\nAva,ava@example.com,,\nBo,,,\n", string(b))
}

func TestRootFailsOnInvalidConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	_, err := execute(t, Options{ConfigPath: filepath.Join(dir, "absent.json"), EnvFile: filepath.Join(dir, "absent.env")})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRootFailsOnMissingTemplate(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("EMAIL_SENDER", "me@example.com")
	t.Setenv("EMAIL_SUBJECT", "Hi")
	t.Setenv("TEMPLATE_FILE", filepath.Join(dir, "missing.html"))

	_, err := execute(t, Options{ConfigPath: filepath.Join(dir, "absent.json")}, "--test")
	assert.ErrorIs(t, err, templates.ErrMissingTemplate)
}

// liveSetup writes a table and template and sets SMTP settings that pass
// validation. Nothing dials unless a run gets past confirmation.
func liveSetup(t *testing.T, csv string) (Options, string) {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	list := filepath.Join(dir, "list.csv")
	require.NoError(t, os.WriteFile(list, []byte(csv), 0o600))
	tpl := filepath.Join(dir, "template.html")
	require.NoError(t, os.WriteFile(tpl, []byte("<p>Hi {{NAME}}</p>"), 0o600))
	t.Setenv("EXCEL_FILE", list)
	t.Setenv("TEMPLATE_FILE", tpl)
	t.Setenv("EMAIL_SUBJECT", "Hi")
	t.Setenv("EMAIL_SENDER", "me@example.com")
	t.Setenv("EMAIL_PASSWORD", "secret")
	t.Setenv("SMTP_SERVER", "127.0.0.1")
	t.Setenv("SMTP_PORT", "1")
	return Options{ConfigPath: filepath.Join(dir, "absent.json")}, list
}

func TestRootDeclinedConfirmationSendsNothing(t *testing.T) {
	opts, list := liveSetup(t, "First Name,To\nAva,ava@example.com\nBo,bo@example.com\n")
	opts.In = strings.NewReader("no\n")
	opts.Interactive = func() bool { return true }

	out, err := execute(t, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "Ready to send 2 emails.")
	assert.Contains(t, out, "Cancelled, nothing was sent.")

	b, err := os.ReadFile(list)
	require.NoError(t, err)
	assert.Equal(t, "First Name,To\nAva,ava@example.com\nBo,bo@example.com\n", string(b), "table not rewritten")
}

func TestRootNothingPending(t *testing.T) {
	opts, _ := liveSetup(t, "First Name,To,Email Status\nAva,ava@example.com,Sent\n")
	opts.Interactive = func() bool {
		t.Fatal("prompt shown with nothing to send")
		return false
	}
	opts.In = strings.NewReader("")

	out, err := execute(t, opts, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending emails to send.")
	assert.NotContains(t, out, "Continue?")
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"yes\n", true},
		{"Y\n", true},
		{"  yep", true},
		{"no\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := prompt(strings.NewReader(tt.answer), &out)(3)
		assert.Equal(t, tt.want, got, "%q", tt.answer)
		assert.Contains(t, out.String(), "Ready to send 3 emails.")
	}
}
