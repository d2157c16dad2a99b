package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every tunable of the service.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	AI       AIConfig
	Checkin  CheckinConfig
	Risk     RiskConfig
	Notify   NotifyConfig
	Log      LogConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	checkin, err := loadCheckinConfig()
	if err != nil {
		return nil, err
	}

	risk, err := loadRiskConfig()
	if err != nil {
		return nil, err
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Database: database,
		AI:       ai,
		Checkin:  checkin,
		Risk:     risk,
		Notify:   loadNotifyConfig(),
		Log:      LogConfig{Mode: getEnvOrDefault("LOG_MODE", "dev")},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// DatabaseConfig describes Postgres connectivity. An empty URL switches the
// service to the in-memory store.
type DatabaseConfig struct {
	URL            string
	MigrationsDir  string
	ConnectRetries int
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	retries := 5
	if override, err := parseOptionalIntEnv("DB_CONNECT_RETRIES"); err != nil {
		return DatabaseConfig{}, err
	} else if override != nil {
		retries = *override
	}

	return DatabaseConfig{
		URL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MigrationsDir:  getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		ConnectRetries: retries,
	}, nil
}

// AIConfig describes the LLM backend.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	// CallTimeout bounds a single generation call. Expired calls fall back
	// to templated replies, so this stays short.
	CallTimeout time.Duration
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: set ARK_API_KEY + ARK_MODEL, or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationMSEnv("AI_CALL_TIMEOUT_MS", 10*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		CallTimeout: timeout,
	}, nil
}

// CheckinConfig describes session orchestration limits.
type CheckinConfig struct {
	// MaxQuestions caps structured questions per session, follow-ups
	// included.
	MaxQuestions int
	// PersistTimeout bounds a single persistence operation.
	PersistTimeout time.Duration
	// TemplateDir optionally points at a directory of questionnaire YAML
	// files; empty means the built-in seed templates.
	TemplateDir string
}

func loadCheckinConfig() (CheckinConfig, error) {
	maxQuestions := 5
	if override, err := parseOptionalIntEnv("MAX_QUESTIONS_PER_SESSION"); err != nil {
		return CheckinConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return CheckinConfig{}, fmt.Errorf("MAX_QUESTIONS_PER_SESSION must be at least 1, got %d", *override)
		}
		maxQuestions = *override
	}

	persistTimeout, err := parseDurationMSEnv("PERSIST_TIMEOUT_MS", 5*time.Second)
	if err != nil {
		return CheckinConfig{}, err
	}

	return CheckinConfig{
		MaxQuestions:   maxQuestions,
		PersistTimeout: persistTimeout,
		TemplateDir:    strings.TrimSpace(os.Getenv("TEMPLATE_DIR")),
	}, nil
}

// RiskConfig describes trend scoring. Per-family weights come from
// RISK_WEIGHT_<FAMILY> variables, e.g. RISK_WEIGHT_PAIN=2.
type RiskConfig struct {
	Threshold      float64
	AcuteJumpSteps float64
	Weights        map[string]float64
}

const riskWeightPrefix = "RISK_WEIGHT_"

func loadRiskConfig() (RiskConfig, error) {
	cfg := RiskConfig{Threshold: 0.6, AcuteJumpSteps: 2}

	if threshold, err := parseOptionalFloatEnv("RISK_ALERT_THRESHOLD"); err != nil {
		return RiskConfig{}, err
	} else if threshold != nil {
		if *threshold <= 0 || *threshold > 1 {
			return RiskConfig{}, fmt.Errorf("RISK_ALERT_THRESHOLD must be in (0, 1], got %v", *threshold)
		}
		cfg.Threshold = *threshold
	}

	if jump, err := parseOptionalFloatEnv("RISK_ACUTE_JUMP_STEPS"); err != nil {
		return RiskConfig{}, err
	} else if jump != nil {
		cfg.AcuteJumpSteps = *jump
	}

	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, riskWeightPrefix) {
			continue
		}
		family := strings.ToLower(strings.TrimPrefix(key, riskWeightPrefix))
		if family == "" {
			continue
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || weight <= 0 {
			return RiskConfig{}, fmt.Errorf("invalid %s value %q", key, value)
		}
		if cfg.Weights == nil {
			cfg.Weights = make(map[string]float64)
		}
		cfg.Weights[family] = weight
	}

	return cfg, nil
}

// NotifyConfig describes care-team notification channels.
type NotifyConfig struct {
	TelegramToken  string
	CareTeamChatID string
}

// Enabled reports whether the Telegram channel is configured.
func (c NotifyConfig) Enabled() bool {
	return c.TelegramToken != "" && c.CareTeamChatID != ""
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		CareTeamChatID: strings.TrimSpace(os.Getenv("CARE_TEAM_CHAT_ID")),
	}
}

// LogConfig selects the logger profile: "dev" or "prod".
type LogConfig struct {
	Mode string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseDurationMSEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	override, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if override == nil {
		return defaultValue, nil
	}
	if *override <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, *override)
	}
	return time.Duration(*override) * time.Millisecond, nil
}
