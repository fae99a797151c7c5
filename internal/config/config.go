package config

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appdefaults "github.com/auralis-ai/live-bridge/config"

	"github.com/auralis-ai/live-bridge/internal/logger"
	"github.com/spf13/viper"
)

// SystemConfig represents a systemConfig.
type SystemConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	ProfilesDir string `mapstructure:"profiles_dir"`
}

// ProfileConfig represents a profileConfig.
type ProfileConfig struct {
	ProfileName  string `mapstructure:"profile_name"`
	ProfileUID   string `mapstructure:"profile_uid"`
	Voice        string `mapstructure:"voice"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// Config represents a config.
type Config struct {
	RootDir            string        `mapstructure:"-"`
	HTTPAddr           string        `mapstructure:"http_addr"`
	GeminiAPIKey       string        `mapstructure:"gemini_api_key"`
	GeminiEndpoint     string        `mapstructure:"gemini_endpoint"`
	GeminiModel        string        `mapstructure:"gemini_model"`
	GeminiVoice        string        `mapstructure:"gemini_voice"`
	GeminiSystemPrompt string        `mapstructure:"gemini_system_prompt"`
	ClientAudioFormat  string        `mapstructure:"client_audio_format"`
	InputSampleRate    int           `mapstructure:"input_sample_rate"`
	OutputSampleRate   int           `mapstructure:"output_sample_rate"`
	Channels           int           `mapstructure:"channels"`
	FrameDuration      int           `mapstructure:"frame_duration"`
	ListenMode         string        `mapstructure:"listen_mode"`
	ProfilesDir        string        `mapstructure:"profiles_dir"`
	ChatHistoryDir     string        `mapstructure:"chat_history_dir"`
	FrontendDir        string        `mapstructure:"frontend_dir"`
	TLSCertPath        string        `mapstructure:"tls_cert_path"`
	TLSKeyPath         string        `mapstructure:"tls_key_path"`
	TLSRequired        bool          `mapstructure:"tls_required"`
	TLSDisable         bool          `mapstructure:"tls_disable"`
	SystemConfig       SystemConfig  `mapstructure:"system_config"`
	ProfileConfig      ProfileConfig `mapstructure:"profile_config"`
	Log                logger.Config `mapstructure:"log"`
}

// Load executes the load function.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix("aura")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveHTTPAddr(&cfg)
	derivePaths(&cfg)
	deriveProfileConfig(&cfg)

	return cfg, nil
}

// LoadConfig executes the loadConfig function.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("AURA_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix("aura")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	deriveHTTPAddr(&cfg)
	derivePaths(&cfg)
	deriveProfileConfig(&cfg)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", "")
	v.SetDefault("gemini_model", "models/gemini-2.0-flash-exp")
	v.SetDefault("gemini_voice", "Aoede")
	v.SetDefault("client_audio_format", "opus")
	v.SetDefault("input_sample_rate", 16000)
	v.SetDefault("output_sample_rate", 24000)
	v.SetDefault("channels", 1)
	v.SetDefault("frame_duration", 20)
	v.SetDefault("listen_mode", "auto")
	v.SetDefault("tls_required", false)
	v.SetDefault("tls_disable", false)
	v.SetDefault("tls_cert_path", "")
	v.SetDefault("tls_key_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "live-bridge.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)
}

func deriveHTTPAddr(cfg *Config) {
	if cfg.HTTPAddr != "" {
		return
	}
	host := cfg.SystemConfig.Host
	port := cfg.SystemConfig.Port
	if port == 0 {
		port = 8101
	}
	if host == "" {
		cfg.HTTPAddr = fmt.Sprintf(":%d", port)
		return
	}
	cfg.HTTPAddr = net.JoinHostPort(host, strconv.Itoa(port))
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("AURA_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	profiles := cfg.ProfilesDir
	if profiles == "" {
		profiles = cfg.SystemConfig.ProfilesDir
	}
	cfg.ProfilesDir = resolvePath(cfg.RootDir, profiles, "profiles")
	cfg.ChatHistoryDir = resolvePath(cfg.RootDir, cfg.ChatHistoryDir, filepath.Join("data", "chat"))
	cfg.FrontendDir = resolvePath(cfg.RootDir, cfg.FrontendDir, filepath.Join("webassets", "console"))
	cfg.TLSCertPath = resolvePath(cfg.RootDir, cfg.TLSCertPath, filepath.Join("certs", "server.crt"))
	cfg.TLSKeyPath = resolvePath(cfg.RootDir, cfg.TLSKeyPath, filepath.Join("certs", "server.key"))
}

func deriveProfileConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	profile := &cfg.ProfileConfig
	if profile.Voice == "" {
		profile.Voice = cfg.GeminiVoice
	}
	if profile.SystemPrompt == "" {
		profile.SystemPrompt = cfg.GeminiSystemPrompt
	}
	if profile.ProfileUID == "" {
		profile.ProfileUID = sanitizeProfileUID(profile.ProfileName)
	}
	if profile.ProfileName == "" {
		profile.ProfileName = profile.ProfileUID
	}
}

func sanitizeProfileUID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return "default"
	}
	return out
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
