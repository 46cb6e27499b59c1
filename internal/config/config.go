package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Fraud    FraudConfig
	Payment  PaymentConfig
	Panel    PanelConfig
	Referral ReferralConfig
	API      APIConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type FraudConfig struct {
	Enabled              bool
	MaxDailyTransactions int64
	MaxDailyAmount       decimal.Decimal
}

type PaymentConfig struct {
	AutoApproveReceipts bool
	AutoApproveMaxScore float64
}

type PanelConfig struct {
	DefaultMode string // mock | sanaei
}

type ReferralConfig struct {
	Percent int64
	Fixed   decimal.Decimal
}

type APIConfig struct {
	Key string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("FRAUD_DETECTION_ENABLED", true)
	viper.SetDefault("MAX_DAILY_TRANSACTIONS", 10)
	viper.SetDefault("MAX_DAILY_AMOUNT", "10000000")
	viper.SetDefault("AUTO_APPROVE_RECEIPTS", false)
	viper.SetDefault("AUTO_APPROVE_MAX_SCORE", 0.3)
	viper.SetDefault("DEFAULT_PANEL_MODE", "mock")
	viper.SetDefault("REFERRAL_PERCENT", 0)
	viper.SetDefault("REFERRAL_FIXED", "0")

	maxDailyAmount, err := decimal.NewFromString(viper.GetString("MAX_DAILY_AMOUNT"))
	if err != nil {
		maxDailyAmount = decimal.NewFromInt(10_000_000)
	}
	referralFixed, err := decimal.NewFromString(viper.GetString("REFERRAL_FIXED"))
	if err != nil {
		referralFixed = decimal.Zero
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Fraud: FraudConfig{
			Enabled:              viper.GetBool("FRAUD_DETECTION_ENABLED"),
			MaxDailyTransactions: viper.GetInt64("MAX_DAILY_TRANSACTIONS"),
			MaxDailyAmount:       maxDailyAmount,
		},
		Payment: PaymentConfig{
			AutoApproveReceipts: viper.GetBool("AUTO_APPROVE_RECEIPTS"),
			AutoApproveMaxScore: viper.GetFloat64("AUTO_APPROVE_MAX_SCORE"),
		},
		Panel: PanelConfig{
			DefaultMode: viper.GetString("DEFAULT_PANEL_MODE"),
		},
		Referral: ReferralConfig{
			Percent: viper.GetInt64("REFERRAL_PERCENT"),
			Fixed:   referralFixed,
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
