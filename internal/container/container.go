package container

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/mailmerge/config"
	"github.com/oksasatya/mailmerge/internal/application"
	"github.com/oksasatya/mailmerge/internal/infrastructure/table"
	"github.com/oksasatya/mailmerge/pkg/helpers"
	"github.com/oksasatya/mailmerge/pkg/mailer"
)

// Container holds the components shared by one run and builds the
// campaign service from them.
type Container struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Preview io.Writer // test-mode output

	gcs *storage.Client
}

func New(cfg *config.Config, logger *logrus.Logger, preview io.Writer) *Container {
	return &Container{Config: cfg, Logger: logger, Preview: preview}
}

// GCS returns a storage client, created on first use. It is only needed
// when the table lives in a gs:// bucket.
func (c *Container) GCS(ctx context.Context) (*storage.Client, error) {
	if c.gcs != nil {
		return c.gcs, nil
	}
	client, err := helpers.NewGCSClient(ctx, c.Config.GCSCredentialsJSONPath)
	if err != nil {
		return nil, fmt.Errorf("init GCS client: %w", err)
	}
	c.gcs = client
	return client, nil
}

// SetGCS injects an existing client.
func (c *Container) SetGCS(client *storage.Client) { c.gcs = client }

func (c *Container) Close() error {
	if c.gcs == nil {
		return nil
	}
	return c.gcs.Close()
}

// Repository builds the table repository for the configured input and output.
func (c *Container) Repository(ctx context.Context) (*table.Repository, error) {
	source, output := c.Config.TableFile, c.Config.Output()
	var gcs *storage.Client
	if helpers.IsGCSURI(source) || helpers.IsGCSURI(output) {
		client, err := c.GCS(ctx)
		if err != nil {
			return nil, err
		}
		gcs = client
	}
	cols := c.Config.Columns
	layout := table.Layout{Address: cols.To, Status: cols.Status, Timestamp: cols.Timestamp}
	return table.NewRepository(source, output, table.StorageFor(source, gcs), table.StorageFor(output, gcs), layout), nil
}

// Sender picks the delivery backend. Test mode always previews.
func (c *Container) Sender() (mailer.Sender, error) {
	cfg := c.Config
	if cfg.TestMode {
		return mailer.NewPreview(cfg.SenderAddress, c.Preview, c.Logger), nil
	}
	switch cfg.Provider {
	case config.ProviderSMTP:
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SenderAddress,
			Password: cfg.SMTPPassword,
			From:     cfg.SenderAddress,
			FromName: cfg.SenderName,
			Timeout:  cfg.SendTimeout,
		}), nil
	case config.ProviderMailgun:
		sender := cfg.SenderAddress
		if cfg.SenderName != "" {
			sender = fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderAddress)
		}
		return mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, sender), nil
	default:
		return nil, fmt.Errorf("%w: unknown mail provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

// Campaign wires the repository and sender into a campaign service.
func (c *Container) Campaign(ctx context.Context, template string) (*application.CampaignService, error) {
	repository, err := c.Repository(ctx)
	if err != nil {
		return nil, err
	}
	sender, err := c.Sender()
	if err != nil {
		return nil, err
	}
	return application.NewCampaignService(repository, sender, template, application.SettingsFromConfig(c.Config), c.Logger), nil
}
