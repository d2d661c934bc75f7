package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Secrets (from .env)
	APIKey          string
	CORSAllowOrigin string
	BirdeyeAPIKey   string
	CoinGeckoAPIKey string
	WebhookURL      string
	BotName         string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// API
	APIPort int

	// Pricing
	PriceProvider        string
	PriceCacheTTL        time.Duration
	PriceRefreshInterval time.Duration
	RecordPriceHistory   bool

	// Realtime subscription
	RealtimeEnabled bool
	RealtimeLimit   int

	// Presentation
	RecentTradesLimit int
	ExplorerTxURL     string

	// Solana
	SolanaRPCEndpoint string
	WalletAddress     string

	LogLevel string
}

var knownProviders = map[string]bool{
	"jupiter":   true,
	"birdeye":   true,
	"coingecko": true,
	"manual":    true,
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),
		BirdeyeAPIKey:   envStr("BIRDEYE_API_KEY", ""),
		CoinGeckoAPIKey: envStr("COINGECKO_API_KEY", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		BotName:         envStr("BOT_NAME", "APE Trading Bot"),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "ape_dashboard"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		APIPort: envInt("API_PORT", 3001),

		// Pricing
		PriceProvider:        strings.ToLower(envStr("PRICE_PROVIDER", "jupiter")),
		PriceCacheTTL:        envSeconds("PRICE_CACHE_TTL_SECONDS", 30),
		PriceRefreshInterval: envSeconds("PRICE_REFRESH_INTERVAL_SECONDS", 30),
		RecordPriceHistory:   envBool("RECORD_PRICE_HISTORY", true),

		// Realtime
		RealtimeEnabled: envBool("REALTIME_ENABLED", true),
		RealtimeLimit:   envInt("REALTIME_LIMIT", 50),

		// Presentation
		RecentTradesLimit: envInt("RECENT_TRADES_LIMIT", 20),
		ExplorerTxURL:     envStr("EXPLORER_TX_URL", "https://solscan.io/tx/"),

		// Solana
		SolanaRPCEndpoint: envStr("SOLANA_RPC_ENDPOINT", ""),
		WalletAddress:     envStr("WALLET_ADDRESS", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Validate returns an error listing every hard problem and prints warnings
// for settings that only degrade behavior.
func (c *Config) Validate() error {
	var errs []string

	if c.DBUser == "" {
		errs = append(errs, "DB_USER is required")
	}
	if !knownProviders[c.PriceProvider] {
		errs = append(errs, fmt.Sprintf("PRICE_PROVIDER %q is not one of jupiter|birdeye|coingecko|manual", c.PriceProvider))
	}
	if c.PriceCacheTTL <= 0 {
		errs = append(errs, "PRICE_CACHE_TTL_SECONDS must be positive")
	}
	if c.PriceRefreshInterval <= 0 {
		errs = append(errs, "PRICE_REFRESH_INTERVAL_SECONDS must be positive")
	}
	if c.RealtimeEnabled && c.RealtimeLimit <= 0 {
		errs = append(errs, "REALTIME_LIMIT must be positive when REALTIME_ENABLED is set")
	}
	if c.RecentTradesLimit <= 0 {
		errs = append(errs, "RECENT_TRADES_LIMIT must be positive")
	}

	if c.PriceProvider == "birdeye" && c.BirdeyeAPIKey == "" {
		fmt.Println("[WARN] PRICE_PROVIDER=birdeye but BIRDEYE_API_KEY not set; every lookup will return 0")
	}
	if c.WalletAddress != "" && c.SolanaRPCEndpoint == "" {
		fmt.Println("[WARN] WALLET_ADDRESS set without SOLANA_RPC_ENDPOINT; SOL balance will not be shown")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set; admin endpoints have no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== APE Trading Dashboard Configuration ===")
	fmt.Printf("Database: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
	fmt.Printf("API Port: %d\n", c.APIPort)
	fmt.Println("--------------------------------------")
	fmt.Println("Pricing:")
	fmt.Printf("  Provider: %s\n", c.PriceProvider)
	fmt.Printf("  Cache TTL: %s\n", c.PriceCacheTTL)
	fmt.Printf("  Refresh: every %s\n", c.PriceRefreshInterval)
	fmt.Printf("  Birdeye key: %s\n", boolLabel(c.BirdeyeAPIKey != "", "configured", "not set"))
	fmt.Printf("  CoinGecko key: %s\n", boolLabel(c.CoinGeckoAPIKey != "", "configured", "not set (public tier)"))
	fmt.Println("--------------------------------------")
	fmt.Printf("Realtime: %s\n", boolLabel(c.RealtimeEnabled, fmt.Sprintf("enabled (newest %d trades)", c.RealtimeLimit), "disabled"))
	if len(c.WalletAddress) > 16 {
		fmt.Printf("Wallet: %s...%s\n", c.WalletAddress[:6], c.WalletAddress[len(c.WalletAddress)-6:])
	}
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
