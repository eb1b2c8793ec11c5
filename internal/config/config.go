package config

import "os"

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	SMS      SMSConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type AuthConfig struct {
	JWTSecret        string
	JWTRefreshSecret string
	AccessTTL        string
	AccessTTLLong    string
	RefreshTTL       string
	CookieDomain     string
	CookieSecure     string
	CookieSameSite   string
	AdminIdentifier  string
	AdminPassword    string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type SMSConfig struct {
	APIURL   string
	APIToken string
	Sender   string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port: getenv("PORT", "8080"),
			Env:  getenv("APP_ENV", "development"),
		},
		Auth: AuthConfig{
			JWTSecret:        os.Getenv("JWT_SECRET"),
			JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
			AccessTTL:        getenv("JWT_ACCESS_TTL", "30m"),
			AccessTTLLong:    getenv("JWT_ACCESS_TTL_LONG", "2h"),
			RefreshTTL:       getenv("JWT_REFRESH_TTL", "720h"),
			CookieDomain:     os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookieSecure:     os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite:   os.Getenv("AUTH_COOKIE_SAMESITE"),
			AdminIdentifier:  os.Getenv("ADMIN_IDENTIFIER"),
			AdminPassword:    os.Getenv("ADMIN_PASSWORD"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		SMS: SMSConfig{
			APIURL:   os.Getenv("SMS_API_URL"),
			APIToken: os.Getenv("SMS_API_TOKEN"),
			Sender:   getenv("SMS_SENDER", "ShopAdmin"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
