package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor описание одного сенсора в InfluxDB
type Sensor struct {
	// Name значение тега "sensor" в измерениях
	Name string `yaml:"name"`
	// Measurement имя measurement (например "imu")
	Measurement string `yaml:"measurement"`
	// FieldPattern regex по полям измерения (например "accel_.+")
	FieldPattern string `yaml:"fieldPattern"`
}

// Influx параметры подключения к InfluxDB; токен только из environment
type Influx struct {
	URL    string `yaml:"url"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
	Token  string `yaml:"-"`
}

// Redis параметры подключения к Redis; пароль только из environment
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"-"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Detector параметры детектора аномалий
type Detector struct {
	Bucket time.Duration `yaml:"bucket"`
	Window time.Duration `yaml:"window"`
	Sigma  float64       `yaml:"sigma"`
}

// Config конфигурация приложения
type Config struct {
	ServerPort      string        `yaml:"serverPort"`
	LogLevel        string        `yaml:"logLevel"`
	RangeDays       int           `yaml:"rangeDays"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
	Influx          Influx        `yaml:"influx"`
	Redis           Redis         `yaml:"redis"`
	Detector        Detector      `yaml:"detector"`
	Sensors         []Sensor      `yaml:"sensors"`
}

// Load читает YAML конфигурацию, дополняет дефолтами и применяет
// environment overrides. Пустой путь означает конфигурацию по умолчанию.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}
	c.applyDefaults()
	c.applyEnv()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RangeDays == 0 {
		c.RangeDays = 3
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = time.Minute
	}
	if c.Influx.URL == "" {
		c.Influx.URL = "http://localhost:8086"
	}
	if c.Influx.Bucket == "" {
		c.Influx.Bucket = "data"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Detector.Bucket == 0 {
		c.Detector.Bucket = time.Minute
	}
	if c.Detector.Window == 0 {
		c.Detector.Window = 30 * time.Minute
	}
	if c.Detector.Sigma == 0 {
		c.Detector.Sigma = 2.5
	}
	if len(c.Sensors) == 0 {
		c.Sensors = []Sensor{
			{Name: "Sensor_1", Measurement: "imu", FieldPattern: "accel_.+"},
			{Name: "Sensor_2", Measurement: "imu", FieldPattern: "accel_.+"},
		}
	}
	for i := range c.Sensors {
		if c.Sensors[i].Measurement == "" {
			c.Sensors[i].Measurement = "imu"
		}
		if c.Sensors[i].FieldPattern == "" {
			c.Sensors[i].FieldPattern = "accel_.+"
		}
	}
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.Influx.URL = getEnv("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getEnv("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = getEnv("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = getEnv("INFLUX_BUCKET", c.Influx.Bucket)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Detector.Sigma = getEnvAsFloat("ANOMALY_SIGMA", c.Detector.Sigma)
}

// getEnv получает environment variable или возвращает default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt получает environment variable как int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat получает environment variable как float64
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var value float64
	if _, err := fmt.Sscanf(valueStr, "%f", &value); err != nil {
		return defaultValue
	}
	return value
}
