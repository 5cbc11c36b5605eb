package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oksasatya/mailmerge/pkg/validation"
)

// ErrInvalidConfig is returned by Validate and MergeFile.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	ProviderSMTP    = "smtp"
	ProviderMailgun = "mailgun"
)

// Columns names the table columns the run reads and writes.
type Columns struct {
	Name      string `json:"NAME_COLUMN" validate:"required"`
	To        string `json:"TO_COLUMN" validate:"required"`
	CC        string `json:"CC_COLUMN"`
	BCC       string `json:"BCC_COLUMN"`
	Subject   string `json:"SUBJECT_COLUMN"`
	Status    string `json:"STATUS_COLUMN" validate:"required"`
	Timestamp string `json:"TIMESTAMP_COLUMN" validate:"required"`
}

// Config holds run configuration loaded from environment variables and an
// optional JSON file. Credential fields are environment only.
type Config struct {
	AppName  string `json:"-"`
	Env      string `json:"-"` // development, production
	LogLevel string `json:"-"`

	// Campaign
	TableFile      string  `json:"EXCEL_FILE" validate:"required"`
	OutputFile     string  `json:"OUTPUT_FILE"` // empty means write back to TableFile
	Subject        string  `json:"EMAIL_SUBJECT" validate:"required"`
	TemplateFile   string  `json:"TEMPLATE_FILE" validate:"required"`
	AttachmentsDir string  `json:"ATTACHMENTS_FOLDER"`
	DelaySeconds   float64 `json:"DELAY_BETWEEN_EMAILS" validate:"gte=0"`
	MaxPerRun      int     `json:"MAX_EMAILS_PER_RUN" validate:"gt=0"`
	TestMode       bool    `json:"TEST_MODE"`
	Provider       string  `json:"MAIL_PROVIDER" validate:"oneof=smtp mailgun"`
	Columns        Columns `json:"COLUMNS"`

	SendTimeout time.Duration `json:"-" validate:"gt=0"`

	// Sender
	SenderAddress string `json:"-" validate:"required,email"`
	SenderName    string `json:"-"`

	// SMTP
	SMTPHost     string `json:"-" validate:"required_if=Provider smtp TestMode false"`
	SMTPPort     int    `json:"-" validate:"port"`
	SMTPPassword string `json:"-" validate:"required_if=Provider smtp TestMode false"`

	// Mailgun
	MailgunDomain string `json:"-" validate:"required_if=Provider mailgun TestMode false"`
	MailgunAPIKey string `json:"-" validate:"required_if=Provider mailgun TestMode false"`

	// Google Cloud Storage, used when table paths start with gs://
	GCSCredentialsJSONPath string `json:"-"` // optional; if empty, Application Default Credentials are used
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("invalid boolean for %s: %v, using default %v", key, err, def)
			return def
		}
		return b
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid int for %s: %v, using default %d", key, err, def)
			return def
		}
		return i
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Printf("invalid number for %s: %v, using default %v", key, err, def)
			return def
		}
		return f
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using default %v", key, err, def)
			return def
		}
		return d
	}
	return def
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		AppName:  getenv("APP_NAME", "mailmerge"),
		Env:      getenv("APP_ENV", "development"),
		LogLevel: getenv("LOG_LEVEL", ""),

		TableFile:      getenv("EXCEL_FILE", "recipients.xlsx"),
		OutputFile:     getenv("OUTPUT_FILE", ""),
		Subject:        getenv("EMAIL_SUBJECT", ""),
		TemplateFile:   getenv("TEMPLATE_FILE", "email_template.html"),
		AttachmentsDir: getenv("ATTACHMENTS_FOLDER", "attachments"),
		DelaySeconds:   getfloat("DELAY_BETWEEN_EMAILS", 2),
		MaxPerRun:      getint("MAX_EMAILS_PER_RUN", 100),
		TestMode:       getbool("TEST_MODE", false),
		Provider:       strings.ToLower(getenv("MAIL_PROVIDER", ProviderSMTP)),
		Columns: Columns{
			Name:      getenv("NAME_COLUMN", "First Name"),
			To:        getenv("TO_COLUMN", "To"),
			CC:        getenv("CC_COLUMN", "CC"),
			BCC:       getenv("BCC_COLUMN", "BCC"),
			Subject:   getenv("SUBJECT_COLUMN", "Custom Subject"),
			Status:    getenv("STATUS_COLUMN", "Email Status"),
			Timestamp: getenv("TIMESTAMP_COLUMN", "Sent Timestamp"),
		},

		SendTimeout: getdur("SEND_TIMEOUT", 30*time.Second),

		SenderAddress: getenv("EMAIL_SENDER", ""),
		SenderName:    getenv("EMAIL_SENDER_NAME", ""),

		SMTPHost:     getenv("SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:     getint("SMTP_PORT", 587),
		SMTPPassword: getenv("EMAIL_PASSWORD", ""),

		MailgunDomain: getenv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey: getenv("MAILGUN_API_KEY", ""),

		GCSCredentialsJSONPath: getenv("GCS_CREDENTIALS_JSON", ""),
	}
}

// MergeFile overlays campaign settings from a JSON file. A missing file is
// not an error; keys absent from the file keep their current values.
func (c *Config) MergeFile(path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	c.Provider = strings.ToLower(c.Provider)
	return nil
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, validation.Describe(err))
	}
	return nil
}

// Delay returns the pause between two consecutive sends.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

// Output returns where the updated table is written.
func (c *Config) Output() string {
	if strings.TrimSpace(c.OutputFile) != "" {
		return c.OutputFile
	}
	return c.TableFile
}
