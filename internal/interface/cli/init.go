package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oksasatya/mailmerge/internal/infrastructure/table"
	"github.com/oksasatya/mailmerge/pkg/mailer/templates"
)

const sampleEnv = `# Email Configuration
EMAIL_SENDER=your_email@gmail.com
EMAIL_SENDER_NAME=
EMAIL_PASSWORD=your_app_password
SMTP_SERVER=smtp.gmail.com
SMTP_PORT=587

# MAIL_PROVIDER=mailgun
# MAILGUN_DOMAIN=mg.example.com
# MAILGUN_API_KEY=

# For Gmail, use an App Password instead of your regular password:
# https://myaccount.google.com/apppasswords
`

const attachmentsReadme = "Place any files here that you want to attach to ALL emails.\n"

// sampleSettings is the initial email_config.json.
var sampleSettings = map[string]any{
	"EXCEL_FILE":           "sample_email_list.xlsx",
	"EMAIL_SUBJECT":        "Your Email Subject Here - Can use {{NAME}} placeholders",
	"TEMPLATE_FILE":        "email_template.html",
	"ATTACHMENTS_FOLDER":   "attachments",
	"DELAY_BETWEEN_EMAILS": 2,
	"MAX_EMAILS_PER_RUN":   100,
	"TEST_MODE":            true,
	"_comment":             "Set TEST_MODE to false when ready to send real emails",
}

var sampleRows = [][]string{
	{"First Name", "To", "CC", "BCC", "Company", "Custom Subject", "Email Status", "Sent Timestamp"},
	{"John", "john@example.com", "manager@example.com", "", "ABC Corp", "", "", ""},
	{"Jane", "jane@example.com,jane2@example.com", "boss@example.com,hr@example.com", "secret@example.com", "XYZ Inc", "Special invitation for {{NAME}}", "", ""},
	{"Bob", "bob@example.com", "", "", "Demo Ltd", "", "", ""},
}

func NewInitCommand(out io.Writer) *cobra.Command {
	var withSample bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create sample .env, settings, template and attachments folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := out
			if w == nil {
				w = cmd.OutOrStdout()
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return Scaffold(w, dir, withSample)
		},
	}
	cmd.Flags().BoolVar(&withSample, "sample", false, "Also write sample_email_list.xlsx")
	return cmd
}

// Scaffold writes the starter files into dir. Existing files are left alone.
func Scaffold(w io.Writer, dir string, withSample bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	settings, err := json.MarshalIndent(sampleSettings, "", "    ")
	if err != nil {
		return err
	}
	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{DefaultEnvFile, []byte(sampleEnv), 0o600},
		{DefaultConfigFile, append(settings, '\n'), 0o644},
		{"email_template.html", []byte(templates.DefaultHTML()), 0o644},
	}
	for _, f := range files {
		created, err := writeIfAbsent(filepath.Join(dir, f.name), f.data, f.perm)
		if err != nil {
			return err
		}
		report(w, f.name, created)
	}

	attachments := filepath.Join(dir, "attachments")
	created := false
	if _, err := os.Stat(attachments); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(attachments, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", attachments, err)
		}
		if _, err := writeIfAbsent(filepath.Join(attachments, "README.txt"), []byte(attachmentsReadme), 0o644); err != nil {
			return err
		}
		created = true
	}
	report(w, "attachments/", created)

	if withSample {
		name := "sample_email_list.xlsx"
		data, err := table.EncodeRows(name, "", sampleRows)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		created, err := writeIfAbsent(filepath.Join(dir, name), data, 0o644)
		if err != nil {
			return err
		}
		report(w, name, created)
	}

	_, _ = fmt.Fprint(w, "\nNext steps:\n"+
		"  1. Edit .env with your email credentials\n"+
		"  2. Edit email_template.html to customize your email\n"+
		"  3. Edit email_config.json for settings\n"+
		"  4. Prepare your spreadsheet with recipient data\n")
	return nil
}

func writeIfAbsent(path string, data []byte, perm os.FileMode) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, f.Close()
}

func report(w io.Writer, name string, created bool) {
	if created {
		_, _ = fmt.Fprintf(w, "created %s\n", name)
		return
	}
	_, _ = fmt.Fprintf(w, "%s already exists\n", name)
}
