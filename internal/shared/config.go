package shared

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"gymdir/internal/reconcile"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	StoreDriver string // mysql | memory
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	FeedBase    string
	FeedKey     string
	FeedRPS     int
	FeedPage    int
	Workers     int
	CacheTTL    time.Duration
	Policy      reconcile.Policy
}

// Load reads .env.local and .env (in that order, existing variables win),
// then resolves every key through viper with defaults.
func Load() Config {
	for _, f := range []string{".env.local", ".env"} {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	policy := reconcile.DefaultPolicy()
	if f := v.GetFloat64("MATCH_NAME_SIMILARITY"); f > 0 && f <= 1 {
		policy.NameSimilarity = f
	}
	if n := v.GetInt("MATCH_MIN_CONTAINMENT"); n > 0 {
		policy.MinContainmentLen = n
	}
	if titles := splitList(v.GetString("GENERIC_TITLES")); len(titles) > 0 {
		policy.GenericTitles = titles
	}

	c := Config{
		AppEnv:      v.GetString("APP_ENV"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		MetricsAddr: v.GetString("METRICS_ADDR"),
		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		MySQLDSN:    v.GetString("MYSQL_DSN"),
		RedisAddr:   v.GetString("REDIS_ADDR"),
		RedisPass:   v.GetString("REDIS_PASSWORD"),
		RedisDB:     v.GetInt("REDIS_DB"),
		FeedBase:    v.GetString("FEED_BASE_URL"),
		FeedKey:     v.GetString("FEED_API_KEY"),
		FeedRPS:     v.GetInt("FEED_RPS"),
		FeedPage:    v.GetInt("FEED_PAGE_SIZE"),
		Workers:     v.GetInt("INGEST_WORKERS"),
		CacheTTL:    time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		Policy:      policy,
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.StoreDriver != "mysql" && c.StoreDriver != "memory" {
		log.Warn().Str("driver", c.StoreDriver).Msg("unknown STORE_DRIVER, using mysql")
		c.StoreDriver = "mysql"
	}
	if c.FeedKey == "" {
		log.Warn().Msg("FEED_API_KEY is empty")
	}
	return c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "prod")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9100")
	v.SetDefault("STORE_DRIVER", "mysql")
	v.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/gymdir?parseTime=true&charset=utf8mb4,utf8&loc=UTC")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("FEED_BASE_URL", "http://localhost:8090/v1")
	v.SetDefault("FEED_API_KEY", "")
	v.SetDefault("FEED_RPS", 5)
	v.SetDefault("FEED_PAGE_SIZE", 100)
	v.SetDefault("INGEST_WORKERS", 8)
	v.SetDefault("CACHE_TTL_SECONDS", 900)
	v.SetDefault("MATCH_NAME_SIMILARITY", 0.8)
	v.SetDefault("MATCH_MIN_CONTAINMENT", 5)
	v.SetDefault("GENERIC_TITLES", "")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
