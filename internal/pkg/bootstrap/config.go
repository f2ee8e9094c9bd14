// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构。
// 每个服务只读取自己关心的部分，其余字段保持默认值即可。
type Config struct {
	App     AppConfig     `yaml:"app"`
	Infra   InfraConfig   `yaml:"infra"`
	Order   OrderConfig   `yaml:"order"`
	Product ProductConfig `yaml:"product"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	Storage  string `yaml:"storage"` // memory | mysql
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	OrderEventsTopic string   `yaml:"orderEventsTopic"`
	GroupID          string   `yaml:"groupId"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

type OrderConfig struct {
	Reservation       ReservationClientConfig `yaml:"reservation"`
	AcceptanceRule    string                  `yaml:"acceptanceRule"`
	ReconcileInterval time.Duration           `yaml:"reconcileInterval"`
}

// ReservationClientConfig 描述 order-service 调用 product-service 预留接口的方式
type ReservationClientConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	ServiceName string        `yaml:"serviceName"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Timeout     time.Duration `yaml:"timeout"`
	Breaker     BreakerConfig `yaml:"breaker"`
	Retry       RetryConfig   `yaml:"retry"`
}

type BreakerConfig struct {
	WindowSize            int           `yaml:"windowSize"`
	MinimumCalls          int           `yaml:"minimumCalls"`
	FailureRateThreshold  float64       `yaml:"failureRateThreshold"`
	SlowCallRateThreshold float64       `yaml:"slowCallRateThreshold"`
	SlowCallDuration      time.Duration `yaml:"slowCallDuration"`
	OpenStateWait         time.Duration `yaml:"openStateWait"`
	HalfOpenCalls         int           `yaml:"halfOpenCalls"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"maxAttempts"`
	InitialInterval time.Duration `yaml:"initialInterval"`
	Multiplier      float64       `yaml:"multiplier"`
}

type ProductConfig struct {
	Auth AuthConfig `yaml:"auth"`
	Lock string     `yaml:"lock"` // local | zookeeper
}

type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

var currentConfig atomic.Pointer[Config]

var defaultPorts = map[string]int{
	"order-service":   8081,
	"product-service": 8082,
	"push-gateway":    8088,
}

// DefaultConfig 返回一份完整的默认配置
func DefaultConfig(serviceName string) *Config {
	port, ok := defaultPorts[serviceName]
	if !ok {
		port = 8080
	}
	return &Config{
		App: AppConfig{Name: serviceName, Port: port, LogLevel: "info", Storage: "memory"},
		Infra: InfraConfig{
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			MySQL:     MySQLConfig{Host: "localhost", Port: 3306, User: "root", Database: "fulfillment"},
			Redis:     RedisConfig{Addr: "localhost:6379"},
			Kafka:     KafkaConfig{OrderEventsTopic: "order-outcome-events", GroupID: serviceName + "-group"},
			Zookeeper: ZookeeperConfig{SessionTimeout: 10 * time.Second},
			Nacos:     NacosConfig{Addrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Order: OrderConfig{
			Reservation: ReservationClientConfig{
				BaseURL:     "http://localhost:8082",
				ServiceName: "product-service",
				Username:    "user",
				Password:    "password",
				Timeout:     5 * time.Second,
				Breaker: BreakerConfig{
					WindowSize:            10,
					MinimumCalls:          4,
					FailureRateThreshold:  50,
					SlowCallRateThreshold: 100,
					SlowCallDuration:      30 * time.Second,
					OpenStateWait:         10 * time.Second,
					HalfOpenCalls:         2,
				},
				Retry: RetryConfig{MaxAttempts: 3, InitialInterval: 500 * time.Millisecond, Multiplier: 2},
			},
			ReconcileInterval: 30 * time.Second,
		},
		Product: ProductConfig{
			Auth: AuthConfig{Username: "user", Password: "password"},
			Lock: "local",
		},
	}
}

// Load 读取 YAML 配置文件并叠加环境变量。
// 文件不存在时直接使用默认值，这样本地开发无需任何配置文件。
func Load(serviceName, path string) (*Config, error) {
	cfg := DefaultConfig(serviceName)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	case os.IsNotExist(err):
		// 使用默认配置
	default:
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init 加载当前服务的配置并设置为全局配置
func Init(serviceName string) *Config {
	path := getEnv("CONFIG_PATH", "configs/"+serviceName+".yaml")
	cfg, err := Load(serviceName, path)
	if err != nil {
		panic(err)
	}
	SetCurrentConfig(cfg)
	return cfg
}

// GetCurrentConfig 返回全局配置，未初始化时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig("")
}

func SetCurrentConfig(cfg *Config) {
	currentConfig.Store(cfg)
}

func applyEnv(cfg *Config) error {
	var err error
	if cfg.App.Port, err = envInt("APP_PORT", cfg.App.Port); err != nil {
		return err
	}
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.Storage = getEnv("STORAGE", cfg.App.Storage)

	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)

	cfg.Infra.MySQL.Host = getEnv("MYSQL_HOST", cfg.Infra.MySQL.Host)
	if cfg.Infra.MySQL.Port, err = envInt("MYSQL_PORT", cfg.Infra.MySQL.Port); err != nil {
		return err
	}
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.Infra.MySQL.Database)

	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Infra.Redis.Password)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Infra.Kafka.OrderEventsTopic = getEnv("KAFKA_ORDER_EVENTS_TOPIC", cfg.Infra.Kafka.OrderEventsTopic)

	if servers := getEnv("ZK_SERVERS", ""); servers != "" {
		cfg.Infra.Zookeeper.Servers = strings.Split(servers, ",")
	}

	if enabled := getEnv("NACOS_ENABLED", ""); enabled != "" {
		cfg.Infra.Nacos.Enabled = enabled == "true"
	}
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)

	res := &cfg.Order.Reservation
	res.BaseURL = getEnv("RESERVATION_BASE_URL", res.BaseURL)
	res.Username = getEnv("RESERVATION_USERNAME", res.Username)
	res.Password = getEnv("RESERVATION_PASSWORD", res.Password)
	if res.Timeout, err = envDuration("RESERVATION_TIMEOUT", res.Timeout); err != nil {
		return err
	}
	cfg.Order.AcceptanceRule = getEnv("ORDER_ACCEPTANCE_RULE", cfg.Order.AcceptanceRule)
	if cfg.Order.ReconcileInterval, err = envDuration("ORDER_RECONCILE_INTERVAL", cfg.Order.ReconcileInterval); err != nil {
		return err
	}

	cfg.Product.Auth.Username = getEnv("PRODUCT_AUTH_USERNAME", cfg.Product.Auth.Username)
	cfg.Product.Auth.Password = getEnv("PRODUCT_AUTH_PASSWORD", cfg.Product.Auth.Password)
	cfg.Product.Lock = getEnv("PRODUCT_LOCK", cfg.Product.Lock)
	return nil
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}
