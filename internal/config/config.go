package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	RawDocDir string
	OutputDir string

	CatalogAPIBaseURL string
	CatalogAPIToken   string
	CatalogRateRPS    int
	CatalogTimeoutMs  int

	// Matching policy. Confidence constants themselves live in the pipeline;
	// these are the tunable acceptance knobs.
	MinConfidence          float64
	AcceptThresholdDefault float64
	AcceptOverrides        map[string]float64

	TopPanels    int
	TopBatteries int
	TopInverters int

	ContextWindow int
	AnchorWindow  int
	BrandWindow   int
	UnscopedLimit int

	// Subject keywords that mark a message as worth fetching. Both connectors
	// apply them server-side; an empty list disables the filter.
	FetchSubjects []string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	ListenerProvider     string
	ListenerLabel        string
	ListenerIntervalSec  int
	ListenerFetchMax     int
	ListenerProcessBatch int
	ListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawDocDir: getEnv("DOC_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CatalogAPIBaseURL: getEnv("CATALOG_API_BASE_URL", ""),
		CatalogAPIToken:   getEnv("CATALOG_API_TOKEN", ""),
		CatalogRateRPS:    getEnvInt("CATALOG_RATE_LIMIT_RPS", 5),
		CatalogTimeoutMs:  getEnvInt("CATALOG_TIMEOUT_MS", 30000),

		MinConfidence:          getEnvFloat("MATCH_MIN_CONFIDENCE", 0.70),
		AcceptThresholdDefault: getEnvFloat("ACCEPT_THRESHOLD_DEFAULT", 0.85),
		AcceptOverrides:        parseOverrides(getEnv("ACCEPT_THRESHOLD_OVERRIDES", "")),

		TopPanels:    getEnvInt("TOP_PANELS", 3),
		TopBatteries: getEnvInt("TOP_BATTERIES", 2),
		TopInverters: getEnvInt("TOP_INVERTERS", 2),

		ContextWindow: getEnvInt("CONTEXT_WINDOW_CHARS", 200),
		AnchorWindow:  getEnvInt("ANCHOR_WINDOW_CHARS", 1200),
		BrandWindow:   getEnvInt("BRAND_WINDOW_CHARS", 200),
		UnscopedLimit: getEnvInt("UNSCOPED_FALLBACK_LIMIT", 50),

		FetchSubjects: parseList(getEnv("MAIL_FETCH_SUBJECTS", "solar,proposal,quote")),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		ListenerProvider:     getEnv("LISTENER_PROVIDER", "gmail"),
		ListenerLabel:        getEnv("LISTENER_LABEL", "INBOX"),
		ListenerIntervalSec:  getEnvInt("LISTENER_INTERVAL_SEC", 30),
		ListenerFetchMax:     getEnvInt("LISTENER_FETCH_MAX", 20),
		ListenerProcessBatch: getEnvInt("LISTENER_PROCESS_BATCH", 20),
		ListenerAutoExport:   getEnvBool("LISTENER_AUTO_EXPORT", true),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// parseOverrides reads per-brand acceptance thresholds from a
// "BRAND=0.9,OTHER=0.8" string. Brand keys are uppercased to match canonical
// brand names.
func parseOverrides(raw string) map[string]float64 {
	out := map[string]float64{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || value <= 0 || value > 1 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(parts[0]))] = value
	}
	return out
}

// parseList splits a comma-separated env value, dropping empty parts. An
// empty value yields an empty list, not the fallback.
func parseList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
