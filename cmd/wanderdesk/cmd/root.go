package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wanderdesk/wanderdesk/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "wanderdesk",
	Short: "Wanderdesk: a travel-support knowledge pipeline",
	Long: `Wanderdesk crawls travel Q&A from help centers, forums, Reddit, and
StackExchange, deduplicates and scores the answers, embeds them into a
Postgres/pgvector corpus, and answers semantic queries over it.

Commands:
  crawl   Run the acquisition pipeline over configured sources
  search  Query the knowledge base
  serve   Start the MCP server for retrieval tooling`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/wanderdesk")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// WANDERDESK_POSTGRES_DSN -> postgres.dsn
	viper.SetEnvPrefix("WANDERDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("postgres.dsn", "WANDERDESK_POSTGRES_DSN")
	viper.BindEnv("postgres.dimensions", "WANDERDESK_POSTGRES_DIMENSIONS")
	viper.BindEnv("elasticsearch.enabled", "WANDERDESK_ELASTICSEARCH_ENABLED")
	viper.BindEnv("elasticsearch.addresses", "WANDERDESK_ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("elasticsearch.index", "WANDERDESK_ELASTICSEARCH_INDEX")
	viper.BindEnv("elasticsearch.username", "WANDERDESK_ELASTICSEARCH_USERNAME")
	viper.BindEnv("elasticsearch.password", "WANDERDESK_ELASTICSEARCH_PASSWORD")
	viper.BindEnv("embeddings.base_url", "WANDERDESK_EMBEDDINGS_BASE_URL")
	viper.BindEnv("embeddings.api_key", "WANDERDESK_EMBEDDINGS_API_KEY")
	viper.BindEnv("embeddings.model", "WANDERDESK_EMBEDDINGS_MODEL")
	viper.BindEnv("archive.enabled", "WANDERDESK_ARCHIVE_ENABLED")
	viper.BindEnv("archive.endpoint", "WANDERDESK_ARCHIVE_ENDPOINT")
	viper.BindEnv("archive.bucket", "WANDERDESK_ARCHIVE_BUCKET")
	viper.BindEnv("archive.access_key_id", "WANDERDESK_ARCHIVE_ACCESS_KEY_ID")
	viper.BindEnv("archive.secret_access_key", "WANDERDESK_ARCHIVE_SECRET_ACCESS_KEY")
	viper.BindEnv("crawler.min_delay", "WANDERDESK_CRAWLER_MIN_DELAY")
	viper.BindEnv("crawler.max_delay", "WANDERDESK_CRAWLER_MAX_DELAY")
	viper.BindEnv("mcp.name", "WANDERDESK_MCP_NAME")
	viper.BindEnv("mcp.version", "WANDERDESK_MCP_VERSION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses as a comma-separated string from env
	if addrs := os.Getenv("WANDERDESK_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
