package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	dataDirENV        = "DATA_DIR"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Где лежат active.json / metadata.json / closed/ / completed_trades.json
	DataDir string `yaml:"data_dir"`

	// Комиссия на одну ногу сделки (вход или выход), например 0.0005 => 0.05%
	FeeRate float64 `yaml:"fee_rate"`

	// Окно подавления повторных сигналов
	DuplicateWindow time.Duration `yaml:"duplicate_window"`

	// Позиция без движения дольше порога закрывается принудительно
	ExpiryThreshold time.Duration `yaml:"expiry_threshold"`
	ExpirySweep     time.Duration `yaml:"expiry_sweep"`
	FlatSweep       time.Duration `yaml:"flat_sweep"`

	// reopen | ignore — что делать с повторным сигналом в ту же сторону
	SameDirectionPolicy string `yaml:"same_direction_policy"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	config := Config{
		DataDir:             getenvDefault(dataDirENV, "data/signals"),
		FeeRate:             floatFromEnv("FEE_RATE", 0.0005),
		DuplicateWindow:     durationFromEnv("DUPLICATE_WINDOW", "5s"),
		ExpiryThreshold:     durationFromEnv("EXPIRY_THRESHOLD", "48h"),
		ExpirySweep:         durationFromEnv("EXPIRY_SWEEP", "1h"),
		FlatSweep:           durationFromEnv("FLAT_SWEEP", "5m"),
		SameDirectionPolicy: getenvDefault("SAME_DIRECTION_POLICY", "reopen"),
	}
	config.Service.Host = getenvDefault("SERVICE_HOST", "0.0.0.0")
	config.Service.PublicPort = intFromEnv("PUBLIC_PORT", 8081)
	config.Service.AdminPort = intFromEnv("ADMIN_PORT", 8080)

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		// Конфиг-файл опционален: все ключи доступны через env.
		log.Printf("config file not found, using env/defaults: %v", err)
	} else {
		defer func() {
			_ = file.Close()
		}()
		decoder := yaml.NewDecoder(file)
		if err = decoder.Decode(&config); err != nil {
			log.Fatalf("Failed to decode config file: %v", err)
		}
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}
	if chat := os.Getenv(chatTelegramENV); chat != "" {
		if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
