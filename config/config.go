package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/ActorLancer/Food-Info-Trace/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Config is the server configuration, read from the environment (and a
// .env file when one is present).
type Config struct {
	Port string

	DBDriver   string // "postgres" | "sqlite"
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	SQLitePath string

	ChainRPCURL     string
	ContractAddress string
	ExpectedChainID string

	JWTSecret string

	AWSRegion   string
	S3Bucket    string
	SNSTopicARN string

	VerifyMetadataHash bool
	LogLevel           string
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	verify, err := envBool("VERIFY_METADATA_HASH", false)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Port:               getenv("PORT", "8080"),
		DBDriver:           strings.ToLower(getenv("DB_DRIVER", "postgres")),
		DBHost:             getenv("DB_HOST", "localhost"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             getenv("DB_NAME", "food_traceability"),
		DBPort:             getenv("DB_PORT", "5432"),
		SQLitePath:         getenv("SQLITE_PATH", "food_traceability.db"),
		ChainRPCURL:        os.Getenv("CHAIN_RPC_URL"),
		ContractAddress:    os.Getenv("CONTRACT_ADDRESS"),
		ExpectedChainID:    getenv("EXPECTED_CHAIN_ID", "0x539"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AWSRegion:          getenv("AWS_REGION", "ap-south-1"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		SNSTopicARN:        os.Getenv("SNS_TOPIC_ARN"),
		VerifyMetadataHash: verify,
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	return cfg, nil
}

// ChainEnabled reports whether on-chain verification can be wired.
func (c *Config) ChainEnabled() bool {
	return c.ChainRPCURL != "" && c.ContractAddress != ""
}

func (c *Config) postgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// OpenDB opens the configured database and migrates the schema.
func OpenDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.postgresDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.FoodRecord{},
		&models.VerificationLog{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// InitDB opens the database and stores it in DB.
func InitDB(cfg *Config) error {
	db, err := OpenDB(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
