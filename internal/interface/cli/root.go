package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oksasatya/mailmerge/config"
	"github.com/oksasatya/mailmerge/internal/container"
	"github.com/oksasatya/mailmerge/pkg/helpers"
	"github.com/oksasatya/mailmerge/pkg/mailer/templates"
)

const (
	DefaultConfigFile = "email_config.json"
	DefaultEnvFile    = ".env"
)

// Options configures the root command. Zero writers fall back to the
// process streams.
type Options struct {
	ConfigPath string
	EnvFile    string
	Out        io.Writer // summary and test-mode previews
	LogOutput  io.Writer

	// In answers the confirmation prompt, which is only shown when
	// Interactive reports true.
	In          io.Reader
	Interactive func() bool
}

func DefaultOptions() Options {
	return Options{
		ConfigPath:  DefaultConfigFile,
		EnvFile:     DefaultEnvFile,
		Out:         os.Stdout,
		In:          os.Stdin,
		Interactive: stdinIsTerminal,
	}
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func NewRootCommand(opts Options) *cobra.Command {
	var testMode, yes bool

	root := &cobra.Command{
		Use:           "mailmerge",
		Short:         "Send personalized emails to every pending row of a recipient table",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := opts.Out
			if out == nil {
				out = cmd.OutOrStdout()
			}

			cfg, err := loadConfig(opts.EnvFile, opts.ConfigPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("test") {
				cfg.TestMode = testMode
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
			if opts.LogOutput != nil {
				logger.SetOutput(opts.LogOutput)
			}
			var confirm func(int) bool
			if !yes && opts.Interactive != nil && opts.Interactive() && opts.In != nil {
				confirm = prompt(opts.In, out)
			}
			return run(cmd, cfg, logger, out, confirm)
		},
	}

	root.Flags().StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Path to the JSON settings file")
	root.Flags().StringVar(&opts.EnvFile, "env-file", opts.EnvFile, "Path to a .env file with credentials")
	root.Flags().BoolVar(&testMode, "test", false, "Preview messages instead of sending them")
	root.Flags().BoolVarP(&yes, "yes", "y", false, "Send without asking for confirmation")

	root.AddCommand(NewInitCommand(opts.Out))
	return root
}

// loadConfig reads the environment (after loading envFile when present)
// and overlays the JSON settings file.
func loadConfig(envFile, configPath string) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: load %s: %v", config.ErrInvalidConfig, envFile, err)
		}
	}
	cfg := config.Load()
	if err := cfg.MergeFile(configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// prompt asks once on out and reads the answer from in. Anything but a
// reply starting with "y" declines.
func prompt(in io.Reader, out io.Writer) func(int) bool {
	return func(ready int) bool {
		_, _ = fmt.Fprintf(out, "Ready to send %d emails.\nContinue? (yes/no): ", ready)
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
	}
}

func run(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger, out io.Writer, confirm func(int) bool) error {
	ctx := cmd.Context()

	tpl, err := templates.LoadTemplate(cfg.TemplateFile)
	if err != nil {
		helpers.LogError(logger, "cannot load email template", err, logrus.Fields{"path": cfg.TemplateFile})
		return err
	}

	c := container.New(cfg, logger, out)
	defer func() { _ = c.Close() }()

	svc, err := c.Campaign(ctx, tpl)
	if err != nil {
		helpers.LogError(logger, "cannot prepare campaign", err, nil)
		return err
	}
	svc.Confirm = confirm
	if cfg.TestMode {
		helpers.LogInfo(logger, "running in TEST MODE, no emails will be sent", nil)
	}

	summary, err := svc.Run(ctx)
	if summary.Total > 0 || err == nil {
		summary.Report(out, cfg.TestMode)
	}
	if err != nil {
		helpers.LogError(logger, "run failed", err, logrus.Fields{"run_id": summary.RunID})
	}
	return err
}
