package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"similarity_engine/internal/auth"
	"similarity_engine/internal/cache"
	"similarity_engine/internal/logger"
	"similarity_engine/internal/store"
)

const defaultConfigPath = "configs/similarity.yaml"

// Config 对应 configs/similarity.yaml
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		Debug           bool          `yaml:"debug"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Cache  cache.Config `yaml:"cache"`
	Store  store.Config `yaml:"store"`
	Lookup struct {
		// Dedupe 合并同一 id 并发的未命中查询
		Dedupe bool `yaml:"dedupe"`
	} `yaml:"lookup"`
	Rank struct {
		DefaultTop int `yaml:"default_top"`
	} `yaml:"rank"`
	Auth struct {
		File   string           `yaml:"file"`
		Tokens []auth.Principal `yaml:"tokens"`
	} `yaml:"auth"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.RequestTimeout = 10 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second
	cfg.Cache.Backend = "memory"
	cfg.Cache.TTL = time.Hour
	cfg.Store.Backend = "file"
	cfg.Store.Path = "data/similar_tracks.jsonl"
	cfg.Rank.DefaultTop = 10
	return cfg
}

// loadConfig 初始化配置，优先级：命令行参数 > 配置文件 > 默认值
func loadConfig(args []string) (*Config, error) {
	fset := flag.NewFlagSet("similarity", flag.ContinueOnError)
	configPath := fset.String("config", defaultConfigPath, "Path to config file")
	portFlag := fset.String("port", "", "Server port")
	debugFlag := fset.Bool("debug", false, "Enable debug logging")
	cacheFlag := fset.String("cache", "", "Cache backend: memory, redis or memcache")
	storeFlag := fset.String("store", "", "Store backend: file, postgres or llm")
	dedupeFlag := fset.Bool("dedupe", false, "Share concurrent store lookups for the same id")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	explicit := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	// 1. 默认值
	cfg := defaultConfig()

	// 2. 配置文件覆盖默认值，未出现的字段保持不变
	data, err := os.ReadFile(*configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", *configPath, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit["config"]:
		logger.Info("Could not find config file '%s', using defaults and flags", *configPath)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 3. 命令行参数 (优先级最高)
	if *portFlag != "" {
		cfg.Server.Port = *portFlag
	}
	if explicit["debug"] {
		cfg.Server.Debug = *debugFlag
	}
	if *cacheFlag != "" {
		cfg.Cache.Backend = *cacheFlag
	}
	if *storeFlag != "" {
		cfg.Store.Backend = *storeFlag
	}
	if explicit["dedupe"] {
		cfg.Lookup.Dedupe = *dedupeFlag
	}

	if cfg.Rank.DefaultTop < 0 {
		return nil, fmt.Errorf("rank.default_top must not be negative, got %d", cfg.Rank.DefaultTop)
	}
	return cfg, nil
}
