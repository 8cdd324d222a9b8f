// server/config/config.go
package config

import (
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// AuctionConfig drives the background scheduler and the negotiation
// defaults. The pending grace period is deliberately configuration, not
// a constant: how long an unfilled auction may sit before being written
// off is a product decision.
type AuctionConfig struct {
	OpenCloseIntervalSec  int `mapstructure:"openCloseIntervalSec"`
	StaleSweepIntervalMin int `mapstructure:"staleSweepIntervalMin"`
	PendingGraceMin       int `mapstructure:"pendingGraceMin"`
	PriceMatchMinutes     int `mapstructure:"priceMatchMinutes"`
}

func (a AuctionConfig) OpenCloseInterval() time.Duration {
	return time.Duration(a.OpenCloseIntervalSec) * time.Second
}

func (a AuctionConfig) StaleSweepInterval() time.Duration {
	return time.Duration(a.StaleSweepIntervalMin) * time.Minute
}

func (a AuctionConfig) PendingGrace() time.Duration {
	return time.Duration(a.PendingGraceMin) * time.Minute
}

type NotifierConfig struct {
	BaseURL    string `mapstructure:"baseURL"`
	TimeoutSec int    `mapstructure:"timeoutSec"`
}

func (n NotifierConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSec) * time.Second
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auction  AuctionConfig  `mapstructure:"auction"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

// LoadConfig reads config.yaml from path and overrides with environment
// variables. A missing file is fine; env-only deployments are valid.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("mongo.uri", "MONGO_URI")
	viper.BindEnv("mongo.dbName", "MONGO_DBNAME")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("auction.openCloseIntervalSec", "AUCTION_OPEN_CLOSE_INTERVAL_SEC")
	viper.BindEnv("auction.staleSweepIntervalMin", "AUCTION_STALE_SWEEP_INTERVAL_MIN")
	viper.BindEnv("auction.pendingGraceMin", "AUCTION_PENDING_GRACE_MIN")
	viper.BindEnv("auction.priceMatchMinutes", "AUCTION_PRICE_MATCH_MINUTES")
	viper.BindEnv("notifier.baseURL", "NOTIFIER_BASE_URL")
	viper.BindEnv("notifier.timeoutSec", "NOTIFIER_TIMEOUT_SEC")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("auction.openCloseIntervalSec", 60)
	viper.SetDefault("auction.staleSweepIntervalMin", 30)
	viper.SetDefault("auction.pendingGraceMin", 720)
	viper.SetDefault("auction.priceMatchMinutes", 30)
	viper.SetDefault("notifier.timeoutSec", 10)

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
