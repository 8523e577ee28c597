package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/callfacts/internal/llm"
	"github.com/ppiankov/callfacts/internal/model"
)

// Version is set at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	envFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "callfacts",
	Short: "callfacts - extract facts from call logs with an LLM",
	Long: `callfacts answers a question from an ordered sequence of plain-text call
logs. Each log is fetched in turn and a language model refines a bulleted
list of facts, replacing facts that later calls contradict.

Run "callfacts serve" for the web backend or "callfacts extract" for a
one-off run from the terminal.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("callfacts " + Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.callfacts/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with APP_KEY and API keys (ignored when missing)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in the dotenv file, config file and ENV variables
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", envFile, err)
		}
	}

	if err := configureViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		return
	}
	if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper wires defaults, the config file and CALLFACTS_* variables
// into v. A missing default config file is not an error.
func configureViper(v *viper.Viper, file string) error {
	setDefaults(v, model.DefaultConfig())

	if file != "" {
		v.SetConfigFile(file)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".callfacts"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	// server.addr is read from CALLFACTS_SERVER_ADDR
	v.SetEnvPrefix("CALLFACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && file == "" {
			return nil
		}
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper, d *model.Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.public_url", d.Server.PublicURL)
	v.SetDefault("server.workers", d.Server.Workers)
	v.SetDefault("server.queue_size", d.Server.QueueSize)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)
	v.SetDefault("server.secure_cookie", d.Server.SecureCookie)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.max_bytes", d.Fetch.MaxBytes)
	v.SetDefault("fetch.respect_robots", d.Fetch.RespectRobots)
	v.SetDefault("fetch.allow_html", d.Fetch.AllowHTML)
	v.SetDefault("fetch.http_proxy", d.Fetch.HTTPProxy)
	v.SetDefault("fetch.https_proxy", d.Fetch.HTTPSProxy)
	v.SetDefault("fetch.no_proxy", d.Fetch.NoProxy)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.temperature", d.LLM.Temperature)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.ttl", d.Store.TTL)
	v.SetDefault("store.redis_addr", d.Store.RedisAddr)
	v.SetDefault("store.redis_db", d.Store.RedisDB)

	v.SetDefault("pipeline.submission_timeout", d.Pipeline.SubmissionTimeout)
	v.SetDefault("pipeline.mark_failed", d.Pipeline.MarkFailed)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.json", d.Log.JSON)
}

// loadConfig resolves the effective configuration from v and the
// environment. Secrets are only ever read from the environment.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Server.AppKey = os.Getenv("APP_KEY")
	if env := llm.APIKeyEnv(cfg.LLM.Provider); env != "" {
		cfg.LLM.APIKey = os.Getenv(env)
	}
	if strings.EqualFold(cfg.LLM.Provider, "ollama") && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	return cfg, nil
}
