package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Upstream
	UpstreamURL       string
	UpstreamTimeout   time.Duration
	UpstreamMaxSize   int64
	UpstreamSSRFGuard bool

	// Refresh
	RefreshSchedule string

	// Board
	OpportunityTypes []string
	PageTitle        string

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string
	// X-Forwarded-Forを信頼するプロキシ。空ならRemoteAddrのみを使う
	TrustedProxies []netip.Prefix

	// CORS
	CORSAllowedOrigin string
}

// defaultEnvFile は読み込みを試みる.envファイルのパス。
const defaultEnvFile = ".env"

// Load は環境変数からConfigを読み込む。
// ENV_FILE（既定は.env）が存在する場合は先に読み込む。既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	envFile := getEnvString("ENV_FILE", defaultEnvFile)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.UpstreamURL = os.Getenv("UPSTREAM_URL")
	if cfg.UpstreamURL == "" {
		missing = append(missing, "UPSTREAM_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.UpstreamMaxSize = getEnvInt64("UPSTREAM_MAX_SIZE", 5242880)
	cfg.UpstreamSSRFGuard = getEnvBool("UPSTREAM_SSRF_GUARD", false)
	cfg.OpportunityTypes = getEnvList("OPPORTUNITY_TYPES", []string{"Internship", "Conference"})
	cfg.PageTitle = getEnvString("PAGE_TITLE", "CampusClimb Opportunities")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	trusted, err := parseTrustedProxies(getEnvList("TRUSTED_PROXIES", nil))
	if err != nil {
		return nil, err
	}
	cfg.TrustedProxies = trusted

	// 明示的に空文字列または"off"が設定された場合は定期更新を無効にする
	cfg.RefreshSchedule = "@every 5m"
	if v, ok := os.LookupEnv("REFRESH_SCHEDULE"); ok {
		cfg.RefreshSchedule = strings.TrimSpace(v)
		if strings.EqualFold(cfg.RefreshSchedule, "off") {
			cfg.RefreshSchedule = ""
		}
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を前後の空白を除いて分割する。空要素は捨てる。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// parseTrustedProxies はCIDRまたは単一IPの一覧をプレフィックスに変換する。
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", e, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
