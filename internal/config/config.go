package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabase     string
	ServerPort        string
	RedisAddr         string
	AuthServiceURL    string
	OrderServiceURL   string
	BillingServiceURL string
	RenewalCron       string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	cfg := &Config{
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     os.Getenv("MONGO_DATABASE"),
		ServerPort:        os.Getenv("SERVER_PORT"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		AuthServiceURL:    os.Getenv("AUTH_SERVICE_URL"),
		OrderServiceURL:   os.Getenv("ORDER_SERVICE_URL"),
		BillingServiceURL: os.Getenv("BILLING_SERVICE_URL"),
		RenewalCron:       os.Getenv("RENEWAL_CRON"),
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "commerce"
	}
	if cfg.RenewalCron == "" {
		// daily at midnight UTC
		cfg.RenewalCron = "0 0 * * *"
	}
	return cfg, nil
}
