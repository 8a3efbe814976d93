package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port         string
		LogLevel     string
		KillTimeout  time.Duration
		PingInterval time.Duration
	}
	Redis struct {
		URL    string
		Prefix string
	}
	Postgres struct {
		DSN string
	}
	Rating struct {
		KFactor float64
		Default float64
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.kill_timeout", "1h")
	v.SetDefault("server.ping_interval", "5s")

	v.SetDefault("redis.prefix", "razroom:")

	v.SetDefault("rating.k_factor", 100)
	v.SetDefault("rating.default", 1500)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.kill_timeout", "ROOM_KILL_TIMEOUT")
	v.BindEnv("server.ping_interval", "PING_INTERVAL")

	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("redis.prefix", "REDIS_PREFIX")

	v.BindEnv("postgres.dsn", "DATABASE_URL")

	v.BindEnv("rating.k_factor", "RATING_K_FACTOR")
	v.BindEnv("rating.default", "RATING_DEFAULT")

	var c Config
	c.Server.Port = fmt.Sprint(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.KillTimeout = v.GetDuration("server.kill_timeout")
	c.Server.PingInterval = v.GetDuration("server.ping_interval")

	c.Redis.URL = v.GetString("redis.url")
	c.Redis.Prefix = v.GetString("redis.prefix")

	c.Postgres.DSN = v.GetString("postgres.dsn")

	c.Rating.KFactor = v.GetFloat64("rating.k_factor")
	c.Rating.Default = v.GetFloat64("rating.default")
	return c
}
