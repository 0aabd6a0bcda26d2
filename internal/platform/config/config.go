package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 是一个全局变量，用于存储所有应用程序的配置
var Cfg *Config

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig 定义了数据库和缓存相关的配置
type DatabaseConfig struct {
	Redis  RedisConfig  `mapstructure:"redis"`
	Sqlite SqliteConfig `mapstructure:"sqlite"`
}

// RedisConfig 定义了Redis的配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SqliteConfig 定义了SQLite的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// DiscoveryConfig 定义了发现引擎的策略常量。
// 这些阈值是策略而非算法本身的一部分，因此放进配置并给出文档化的默认值。
type DiscoveryConfig struct {
	// SearchRadiusMeters 是每个扫描周期拉取候选宝藏的搜索半径
	SearchRadiusMeters float64 `mapstructure:"searchRadiusMeters"`
	// DiscoveryRadiusMeters 是宝藏进入可确认状态的默认发现半径
	DiscoveryRadiusMeters float64 `mapstructure:"discoveryRadiusMeters"`
	// VeryCloseRadiusMeters / WarmRadiusMeters 划分提示层级
	VeryCloseRadiusMeters float64 `mapstructure:"veryCloseRadiusMeters"`
	WarmRadiusMeters      float64 `mapstructure:"warmRadiusMeters"`
	// ScanInterval 是两次扫描周期之间的间隔；周期出错后退避两倍间隔
	ScanInterval time.Duration `mapstructure:"scanInterval"`
	// ConfirmedDisplayWindow 是确认成功后状态保留展示的时长
	ConfirmedDisplayWindow time.Duration `mapstructure:"confirmedDisplayWindow"`
	// StoreTimeout 是扫描周期内单次存储调用的超时上限
	StoreTimeout time.Duration `mapstructure:"storeTimeout"`
}

// LoadConfig 函数负责查找、加载和解析配置文件
// 它会在指定的路径中查找名为 config.yaml 的文件；文件缺失时使用默认值启动
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 允许通过环境变量覆盖配置，例如 SERVER_ADDRESS=:9090
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// 没有配置文件不是错误，全部使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	Cfg = &cfg
	return Cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.sqlite.path", "mapmyst.db")

	v.SetDefault("discovery.searchRadiusMeters", 50.0)
	v.SetDefault("discovery.discoveryRadiusMeters", 10.0)
	v.SetDefault("discovery.veryCloseRadiusMeters", 20.0)
	v.SetDefault("discovery.warmRadiusMeters", 30.0)
	v.SetDefault("discovery.scanInterval", 3*time.Second)
	v.SetDefault("discovery.confirmedDisplayWindow", 5*time.Second)
	v.SetDefault("discovery.storeTimeout", 10*time.Second)
}
