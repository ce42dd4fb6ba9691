package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

var (
	providerName   string
	providerModel  string
	providerAPIKey string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the settings stored in ~/.cvsearch/config.toml.

OPENAI_API_KEY, CVSEARCH_QDRANT_URL, CVSEARCH_MONGO_URI and CVSEARCH_PG_DSN
override the stored values and are read from .env when present.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a stored setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting",
	Long: `Stores a single setting. Values are checked against the key's type:
integers, booleans, durations such as 30s, or comma-separated lists.

  cvsearch config set storage.vector qdrant
  cvsearch config set schema.fields salary:number,team:string`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configProviderCmd = &cobra.Command{
	Use:   "provider",
	Short: "Configure the embedding provider",
	Long: `Configures the embedding provider. Without --provider the choice is
made interactively. The provider is pinged before the command returns.`,
	Args: cobra.NoArgs,
	RunE: runConfigProvider,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configProviderCmd.Flags().StringVar(&providerName, "provider", "", "provider name (ollama, openai)")
	configProviderCmd.Flags().StringVar(&providerModel, "model", "", "embedding model (default per provider)")
	configProviderCmd.Flags().StringVar(&providerAPIKey, "api-key", "", "API key for cloud providers")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configProviderCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	}
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !settings.Embedding.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Vector index: %s\n", settings.Storage.Vector)
	cmd.Printf("  Metadata: %s\n", settings.Storage.Metadata)
	switch settings.Storage.Vector {
	case domain.VectorBackendQdrant:
		cmd.Printf("  Qdrant: %s (%s)\n", settings.Storage.QdrantURL, settings.Storage.QdrantCollection)
	case domain.VectorBackendPGVector:
		cmd.Printf("  Postgres table: %s\n", settings.Storage.PostgresTable)
	}
	if settings.Storage.Metadata == domain.MetadataBackendMongo {
		cmd.Printf("  Mongo database: %s\n", settings.Storage.MongoDatabase)
	}
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d, overlap: %d\n", settings.Chunking.Size, settings.Chunking.Overlap)
	cmd.Println()

	cmd.Println("[Planner]")
	p := settings.Planner
	cmd.Printf("  Limit: %d (max %d)\n", p.DefaultLimit, p.MaxLimit)
	cmd.Printf("  Selective threshold: %d, exhaustive threshold: %d\n", p.SelectiveThreshold, p.ExhaustiveThreshold)
	cmd.Printf("  Over-fetch: %dx, widen rounds: %d\n", p.OverFetch, p.WidenRounds)
	cmd.Println()

	if len(settings.SchemaFields) > 0 {
		cmd.Println("[Schema]")
		cmd.Printf("  Extra fields: %s\n", strings.Join(settings.SchemaFields, ", "))
		cmd.Println()
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'cvsearch config provider' to configure embeddings.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	val, ok := settingsService.GetValue(args[0])
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	if strings.HasSuffix(args[0], "api_key") {
		val = maskAPIKey(fmt.Sprint(val))
	}
	cmd.Println(val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.SetValue(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("Set %s\n", args[0])
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Validate(); err != nil {
		return err
	}
	cmd.Println("Configuration is valid.")
	return nil
}

func runConfigProvider(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider := domain.AIProvider(providerName)
	model, apiKey := providerModel, providerAPIKey
	if providerName == "" {
		var err error
		provider, model, apiKey, err = promptEmbeddingProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
		if err != nil {
			return err
		}
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if pingEmbedding != nil {
		cmd.Print("Validating configuration... ")
		if err := pingEmbedding(commandContext(cmd), settings.Embedding); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("embedding configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), settings.Embedding.Model)
	return nil
}

func promptEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) (domain.AIProvider, string, string, error) {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() && os.Getenv("OPENAI_API_KEY") == "" {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return "", "", "", errors.New("API key is required for this provider")
		}
	}
	return selected, model, apiKey, nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, otherwise a line from
// reader.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
