package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"NewsletterScanner/internal/content"
	"NewsletterScanner/internal/domain"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWSLETTER_SCANNER_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	imapHostEnv     = "IMAP_HOST"
	imapUserEnv     = "IMAP_USERNAME"
	imapPasswordEnv = "IMAP_PASSWORD"
	logLevelEnv     = "LOG_LEVEL"
	httpAddrEnv     = "HTTP_ADDR"

	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Store and mail drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"

	MailIMAP = "imap"
	MailEML  = "eml"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Mail      MailConfig      `yaml:"mail"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`

	Notifications NotificationConfig `yaml:"notifications"`
	// Filters extends the built-in validator lists.
	Filters content.Rules `yaml:"filters"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects where jobs are persisted.
type StoreConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	BadgerDir string `yaml:"badgerDir"`
}

// MailConfig selects where newsletters are read from.
type MailConfig struct {
	Driver string     `yaml:"driver"`
	IMAP   IMAPConfig `yaml:"imap"`
	EMLDir string     `yaml:"emlDir"`
}

// IMAPConfig describes the mailbox connection. TLS is used unless Plaintext is set.
type IMAPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Mailbox   string `yaml:"mailbox"`
	Plaintext bool   `yaml:"plaintext"`
}

// SchedulerConfig defines when jobs are submitted automatically.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages. Delivery is off
// while either the token or the chat is empty.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// Enabled reports whether digests should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// PipelineConfig tunes link processing and the default job parameters.
type PipelineConfig struct {
	LinkBudget        int      `yaml:"linkBudget"`
	MaxNewsletters    int      `yaml:"maxNewsletters"`
	TimeWindow        string   `yaml:"timeWindow"`
	SenderFilter      []string `yaml:"senderFilter"`
	Concurrency       int      `yaml:"concurrency"`
	ResolveTimeout    string   `yaml:"resolveTimeout"`
	MaxRedirects      int      `yaml:"maxRedirects"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond"`
	Burst             int      `yaml:"burst"`
	UserAgent         string   `yaml:"userAgent"`
}

// Window returns the parsed time window; invalid values were rejected by Validate.
func (p PipelineConfig) Window() time.Duration {
	d, _ := domain.ParseWindow(p.TimeWindow)
	return d
}

// Timeout returns the parsed per-request resolve timeout.
func (p PipelineConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(p.ResolveTimeout)
	return d
}

// JobDefaults are applied to submissions that leave parameters unset.
func (p PipelineConfig) JobDefaults() domain.JobParams {
	return domain.JobParams{
		TimeWindow:     p.Window(),
		MaxNewsletters: p.MaxNewsletters,
		SenderFilter:   append([]string(nil), p.SenderFilter...),
	}
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg, err := LoadFrom(os.Getenv(configPathEnv))
	if err != nil {
		log.Printf("config: %v (falling back to defaults)", err)
		cfg = defaultConfig()
		cfg.applyEnvOverrides()
		cfg.bindTimezone()
	}
	return cfg
}

// LoadFrom reads the YAML file at path over the defaults. An empty path uses
// defaults only. Environment overrides are applied last.
func LoadFrom(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg, nil
}

// Validate reports settings the application cannot start with.
func (c Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Mail.Driver {
	case MailIMAP:
	case MailEML:
		if c.Mail.EMLDir == "" {
			problems = append(problems, "mail.emlDir is required for eml")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown mail.driver %q", c.Mail.Driver))
	}

	if _, err := domain.ParseWindow(c.Pipeline.TimeWindow); err != nil {
		problems = append(problems, "pipeline.timeWindow: "+err.Error())
	}
	if d, err := time.ParseDuration(c.Pipeline.ResolveTimeout); err != nil || d <= 0 {
		problems = append(problems, fmt.Sprintf("pipeline.resolveTimeout: invalid duration %q", c.Pipeline.ResolveTimeout))
	}
	if c.Scheduler.Enabled && c.Scheduler.CronExpression == "" {
		problems = append(problems, "scheduler.cronExpression is required when enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.DSN = v
	}

	if v := os.Getenv(imapHostEnv); v != "" {
		c.Mail.IMAP.Host = v
	}

	if v := os.Getenv(imapUserEnv); v != "" {
		c.Mail.IMAP.Username = v
	}

	if v := os.Getenv(imapPasswordEnv); v != "" {
		c.Mail.IMAP.Password = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Store.Driver != "" {
		base.Store.Driver = override.Store.Driver
	}
	if override.Store.DSN != "" {
		base.Store.DSN = override.Store.DSN
	}
	if override.Store.BadgerDir != "" {
		base.Store.BadgerDir = override.Store.BadgerDir
	}

	if override.Mail.Driver != "" {
		base.Mail.Driver = override.Mail.Driver
	}
	if override.Mail.EMLDir != "" {
		base.Mail.EMLDir = override.Mail.EMLDir
	}
	if override.Mail.IMAP.Host != "" {
		base.Mail.IMAP.Host = override.Mail.IMAP.Host
	}
	if override.Mail.IMAP.Port != 0 {
		base.Mail.IMAP.Port = override.Mail.IMAP.Port
	}
	if override.Mail.IMAP.Username != "" {
		base.Mail.IMAP.Username = override.Mail.IMAP.Username
	}
	if override.Mail.IMAP.Password != "" {
		base.Mail.IMAP.Password = override.Mail.IMAP.Password
	}
	if override.Mail.IMAP.Mailbox != "" {
		base.Mail.IMAP.Mailbox = override.Mail.IMAP.Mailbox
	}
	if override.Mail.IMAP.Plaintext {
		base.Mail.IMAP.Plaintext = true
	}

	if override.Scheduler.Enabled {
		base.Scheduler.Enabled = true
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIBase != "" {
		base.Notifications.Telegram.APIBase = override.Notifications.Telegram.APIBase
	}

	base.Pipeline = mergePipeline(base.Pipeline, override.Pipeline)
	base.Filters = base.Filters.Merge(override.Filters)

	return base
}

func mergePipeline(base, override PipelineConfig) PipelineConfig {
	if override.LinkBudget != 0 {
		base.LinkBudget = override.LinkBudget
	}
	if override.MaxNewsletters != 0 {
		base.MaxNewsletters = override.MaxNewsletters
	}
	if override.TimeWindow != "" {
		base.TimeWindow = override.TimeWindow
	}
	if len(override.SenderFilter) > 0 {
		base.SenderFilter = override.SenderFilter
	}
	if override.Concurrency != 0 {
		base.Concurrency = override.Concurrency
	}
	if override.ResolveTimeout != "" {
		base.ResolveTimeout = override.ResolveTimeout
	}
	if override.MaxRedirects != 0 {
		base.MaxRedirects = override.MaxRedirects
	}
	if override.RequestsPerSecond != 0 {
		base.RequestsPerSecond = override.RequestsPerSecond
	}
	if override.Burst != 0 {
		base.Burst = override.Burst
	}
	if override.UserAgent != "" {
		base.UserAgent = override.UserAgent
	}
	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Addr: ":8080"},
		Store:   StoreConfig{Driver: StoreMemory, BadgerDir: "data/jobs"},
		Mail: MailConfig{
			Driver: MailIMAP,
			IMAP:   IMAPConfig{Port: 993, Mailbox: "INBOX"},
		},
		Scheduler: SchedulerConfig{CronExpression: "0 7 * * *", Timezone: defaultTimezone, location: tz},
		Pipeline: PipelineConfig{
			LinkBudget:        30,
			MaxNewsletters:    10,
			TimeWindow:        "1d",
			Concurrency:       8,
			ResolveTimeout:    "10s",
			MaxRedirects:      10,
			RequestsPerSecond: 10,
			Burst:             5,
			UserAgent:         "NewsletterScanner/1.0",
		},
	}
}
