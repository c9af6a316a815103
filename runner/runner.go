package runner

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/housinglord/housing-lord/tlmt"
	"github.com/housinglord/housing-lord/tlmt/gonoop"
	"github.com/housinglord/housing-lord/tlmt/goposthog"
)

const (
	RunModeWeb = iota + 1
	RunModeNotifyWorker
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreSanity   = "sanity"
)

var (
	ErrInvalidRunMode = errors.New("invalid run mode")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

type Config struct {
	RunMode        int
	Debug          bool
	Addr           string
	AllowedOrigins []string

	Store      string
	Dsn        string
	DataFolder string

	SanityProjectID  string
	SanityDataset    string
	SanityToken      string
	SanityAPIVersion string

	ClerkSecretKey string
	AdminEmails    []string

	AdminNotifyEmail string
	DashboardURL     string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPFrom         string
	NotifyAttempts   int
	NotifyDelay      time.Duration
	NotifyWorkers    int

	RedisURL string

	S3Bucket     string
	S3Endpoint   string
	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string

	StoreTimeout    time.Duration
	SendTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ParseConfig reads flags from args. Every flag falls back to an
// environment variable so the service can be configured from .env alone.
func ParseConfig(args []string) (*Config, error) {
	cfg := Config{}

	var (
		mode           string
		origins        string
		admins         string
		notifyAttempts string
	)

	fs := flag.NewFlagSet("housing-lord", flag.ContinueOnError)

	fs.StringVar(&mode, "mode", envOr("RUN_MODE", "web"), "run mode: web or notify-worker")
	fs.BoolVar(&cfg.Debug, "debug", envBool("DEBUG"), "enable development logging")
	fs.StringVar(&cfg.Addr, "addr", envOr("ADDR", ":8080"), "address to listen on for the web server")
	fs.StringVar(&origins, "allowed-origins", os.Getenv("ALLOWED_ORIGINS"), "comma separated CORS origins [default: any]")

	fs.StringVar(&cfg.Store, "store", envOr("STORE", StoreSQLite), "document store: memory, sqlite, postgres or sanity")
	fs.StringVar(&cfg.Dsn, "dsn", os.Getenv("DATABASE_URL"), "database connection string for the postgres store")
	fs.StringVar(&cfg.DataFolder, "data-folder", envOr("DATA_FOLDER", "webdata"), "data folder for the sqlite store")

	fs.StringVar(&cfg.SanityProjectID, "sanity-project", os.Getenv("SANITY_PROJECT_ID"), "Sanity project id")
	fs.StringVar(&cfg.SanityDataset, "sanity-dataset", envOr("SANITY_DATASET", "production"), "Sanity dataset")
	fs.StringVar(&cfg.SanityToken, "sanity-token", os.Getenv("SANITY_TOKEN"), "Sanity API token with write access")
	fs.StringVar(&cfg.SanityAPIVersion, "sanity-api-version", os.Getenv("SANITY_API_VERSION"), "Sanity API version")

	fs.StringVar(&cfg.ClerkSecretKey, "clerk-secret-key", os.Getenv("CLERK_SECRET_KEY"), "Clerk secret key")
	fs.StringVar(&admins, "admin-emails", os.Getenv("ADMIN_EMAILS"), "comma separated admin email addresses")

	fs.StringVar(&cfg.AdminNotifyEmail, "admin-notify-email", os.Getenv("ADMIN_EMAIL"), "address copied on interest notifications")
	fs.StringVar(&cfg.DashboardURL, "dashboard-url", os.Getenv("DASHBOARD_URL"), "link to the owner dashboard used in emails")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", os.Getenv("SMTP_HOST"), "SMTP host [default: log emails instead of sending]")
	fs.IntVar(&cfg.SMTPPort, "smtp-port", envInt("SMTP_PORT", 587), "SMTP port")
	fs.StringVar(&cfg.SMTPUser, "smtp-user", os.Getenv("SMTP_USER"), "SMTP username")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", os.Getenv("SMTP_FROM"), "sender address [default: smtp user]")
	fs.StringVar(&notifyAttempts, "notify-attempts", envOr("NOTIFY_ATTEMPTS", "3"), "delivery attempts per notification")
	fs.DurationVar(&cfg.NotifyDelay, "notify-delay", envDuration("NOTIFY_DELAY", time.Second), "delay between delivery attempts")
	fs.IntVar(&cfg.NotifyWorkers, "notify-workers", envInt("NOTIFY_WORKERS", 2), "in-process notification workers")

	fs.StringVar(&cfg.RedisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL; enables the notification queue and distributed locks")

	fs.StringVar(&cfg.S3Bucket, "s3-bucket", os.Getenv("S3_BUCKET"), "S3 bucket for image uploads")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", os.Getenv("S3_ENDPOINT"), "S3 compatible endpoint")
	fs.StringVar(&cfg.AwsRegion, "aws-region", os.Getenv("MY_AWS_REGION"), "AWS region")
	fs.StringVar(&cfg.AwsAccessKey, "aws-access-key", os.Getenv("MY_AWS_ACCESS_KEY"), "AWS access key")
	fs.StringVar(&cfg.AwsSecretKey, "aws-secret-key", os.Getenv("MY_AWS_SECRET_KEY"), "AWS secret key")

	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", envDuration("STORE_TIMEOUT", 5*time.Second), "timeout for each store call")
	fs.DurationVar(&cfg.SendTimeout, "send-timeout", envDuration("SEND_TIMEOUT", 10*time.Second), "timeout for each email send")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", envDuration("SHUTDOWN_TIMEOUT", 15*time.Second), "graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.AllowedOrigins = splitList(origins)
	cfg.AdminEmails = splitList(admins)

	n, err := strconv.Atoi(notifyAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: notify-attempts %q", ErrInvalidConfig, notifyAttempts)
	}

	cfg.NotifyAttempts = n

	switch mode {
	case "web":
		cfg.RunMode = RunModeWeb
	case "notify-worker":
		cfg.RunMode = RunModeNotifyWorker
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunMode, mode)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.DataFolder == "" {
			return fmt.Errorf("%w: data folder is required for the sqlite store", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.Dsn == "" {
			return fmt.Errorf("%w: dsn is required for the postgres store", ErrInvalidConfig)
		}
	case StoreSanity:
		if c.SanityProjectID == "" || c.SanityToken == "" {
			return fmt.Errorf("%w: sanity project and token are required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	if c.NotifyAttempts < 1 {
		return fmt.Errorf("%w: notify attempts must be at least 1", ErrInvalidConfig)
	}

	if c.NotifyDelay < 0 {
		return fmt.Errorf("%w: notify delay must not be negative", ErrInvalidConfig)
	}

	if c.NotifyWorkers < 1 {
		return fmt.Errorf("%w: notify workers must be at least 1", ErrInvalidConfig)
	}

	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return fmt.Errorf("%w: smtp port %d", ErrInvalidConfig, c.SMTPPort)
	}

	if c.RunMode == RunModeNotifyWorker && c.RedisURL == "" && os.Getenv("REDIS_HOST") == "" {
		return fmt.Errorf("%w: the notify worker needs redis", ErrInvalidConfig)
	}

	return nil
}

// NewLogger returns a production logger, or a development one in debug mode
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

var (
	telemetryOnce sync.Once
	telemetry     tlmt.Telemetry
)

// Telemetry is a process wide analytics sink. Events only go to PostHog
// when POSTHOG_API_KEY is set and DISABLE_TELEMETRY is not 1; otherwise
// they are logged at debug level. The logger of the first call wins.
func Telemetry(logger *zap.Logger) tlmt.Telemetry {
	telemetryOnce.Do(func() {
		key := os.Getenv("POSTHOG_API_KEY")

		if key == "" || os.Getenv("DISABLE_TELEMETRY") == "1" {
			telemetry = gonoop.NewLogging(logger)

			return
		}

		val, err := goposthog.New(goposthog.Config{
			APIKey:   key,
			Endpoint: os.Getenv("POSTHOG_ENDPOINT"),
		})
		if err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))

			telemetry = gonoop.NewLogging(logger)

			return
		}

		telemetry = val
	})

	return telemetry
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}

	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}

	return v
}

func splitList(s string) []string {
	var ans []string

	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			ans = append(ans, item)
		}
	}

	return ans
}

func wrapText(text string, width int) []string {
	var lines []string

	currentLine := ""
	currentWidth := 0

	for _, r := range text {
		runeWidth := runewidth.RuneWidth(r)
		if currentWidth+runeWidth > width {
			lines = append(lines, currentLine)
			currentLine = string(r)
			currentWidth = runeWidth
		} else {
			currentLine += string(r)
			currentWidth += runeWidth
		}
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func banner(messages []string, width int) string {
	if width <= 0 {
		var err error

		width, _, err = term.GetSize(int(os.Stderr.Fd()))
		if err != nil {
			width = 80
		}
	}

	if width < 20 {
		width = 20
	}

	contentWidth := width - 4

	var wrappedLines []string
	for _, message := range messages {
		wrappedLines = append(wrappedLines, wrapText(message, contentWidth)...)
	}

	var builder strings.Builder

	builder.WriteString("╔" + strings.Repeat("═", width-2) + "╗\n")

	for _, line := range wrappedLines {
		paddingRight := max(contentWidth-runewidth.StringWidth(line), 0)

		builder.WriteString(fmt.Sprintf("║ %s%s ║\n", line, strings.Repeat(" ", paddingRight)))
	}

	builder.WriteString("╚" + strings.Repeat("═", width-2) + "╝\n")

	return builder.String()
}

// Banner prints the startup summary to stderr
func Banner(cfg *Config) {
	mode := "web server on " + cfg.Addr
	if cfg.RunMode == RunModeNotifyWorker {
		mode = "notification worker"
	}

	messages := []string{
		"🏠 Housing Lord",
		"▶ " + mode,
		"🗄 store: " + cfg.Store,
	}

	if cfg.Debug {
		messages = append(messages, "🐞 debug logging enabled")
	}

	fmt.Fprintln(os.Stderr, banner(messages, 0))
}
