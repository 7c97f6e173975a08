// ABOUTME: Entry point for the prospector lead-approval service
// ABOUTME: Turns repo i18n signals into human-reviewed CRM commits

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/leadmachine/prospector/internal/auth"
	"github.com/leadmachine/prospector/internal/config"
	"github.com/leadmachine/prospector/internal/dedupe"
	"github.com/leadmachine/prospector/internal/directory"
	"github.com/leadmachine/prospector/internal/draft"
	"github.com/leadmachine/prospector/internal/notify"
	"github.com/leadmachine/prospector/internal/server"
	"github.com/leadmachine/prospector/internal/store"
	"github.com/leadmachine/prospector/internal/workflow"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                         _
 _ __  _ __ ___  ___ _ __   ___  ___ ___| |_ ___  _ __
| '_ \| '__/ _ \/ __| '_ \ / _ \/ __/ __| __/ _ \| '__|
| |_) | | | (_) \__ \ |_) |  __/ (__\__ \ || (_) | |
| .__/|_|  \___/|___/ .__/ \___|\___|___/\__\___/|_|
|_|                 |_|
`

// getConfigPath returns the path to the prospector config file.
// Priority: PROSPECTOR_CONFIG env var > XDG_CONFIG_HOME/prospector/prospector.yaml > ~/.config/prospector/prospector.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PROSPECTOR_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "prospector.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "prospector", "prospector.yaml")
}

// getDataPath returns the path to the prospector data directory.
// Priority: XDG_DATA_HOME/prospector > ~/.local/share/prospector
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "prospector")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: prospector <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the approval pipeline server")
		fmt.Println("  init                   Create a new config file interactively")
		fmt.Println("  token --subject NAME   Generate an operator API token")
		fmt.Println("  health                 Check server health")
		fmt.Println("  pending                List approval requests awaiting review")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "health":
		err = runHealth(ctx)
	case "pending":
		err = runPending(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Channel:   %s\n", cfg.Slack.ChannelID)
	fmt.Println()

	logger.Info("starting prospector",
		"config", configPath,
		"addr", cfg.Server.Addr,
	)

	// Credentials are not required to boot; the affected stage fails at call time.
	for _, key := range cfg.MissingCredentials() {
		logger.Warn("credential not configured", "key", key)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path, cfg.Database.CacheExpiry)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	dirClient := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.APIKey, cfg.Directory.SequenceID)

	var generator draft.Generator
	if cfg.AI.Provider == "gemini" {
		generator = draft.NewGeminiGenerator(cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
	} else {
		generator = draft.NewAnthropicGenerator(cfg.AI.AnthropicAPIKey, cfg.AI.AnthropicModel)
	}

	notifier := notify.NewSlackNotifier(cfg.Slack.BotToken, cfg.Slack.ChannelID)

	wf := workflow.New(st, dirClient, dirClient, generator, notifier, workflow.Options{
		Titles:  cfg.Directory.Titles,
		PerPage: cfg.Directory.PerPage,
		Replays: dedupe.New(dedupe.DefaultTTL, dedupe.DefaultMaxSize),
	})

	var tokens auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}
	signatures := auth.NewSignatureVerifier(cfg.Slack.SigningSecret)

	srv := server.New(cfg.Server.Addr, wf, st, signatures, tokens)
	return srv.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runPending lists pending approval requests via the operator API. The token
// saved by "prospector token" is sent when present.
func runPending(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/api/pending", cfg.Server.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if token, err := os.ReadFile(tokenPath); err == nil {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(string(token)))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("pending check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("listing pending failed: status %d", resp.StatusCode)
	}

	var result struct {
		Pending []struct {
			ID            string `json:"id"`
			Company       string `json:"company"`
			ContactName   string `json:"contact_name"`
			ContactEmail  string `json:"contact_email"`
			Subject       string `json:"subject"`
			SignalSummary string `json:"signal_summary"`
			Published     bool   `json:"published"`
			CreatedAt     string `json:"created_at"`
		} `json:"pending"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if result.Count == 0 {
		fmt.Println("No pending approval requests.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	fmt.Printf("%d pending approval request(s):\n\n", result.Count)
	for _, p := range result.Pending {
		cyan.Printf("  %s", p.Company)
		fmt.Printf(" - %s <%s>\n", p.ContactName, p.ContactEmail)
		fmt.Printf("    %s\n", p.Subject)
		gray.Printf("    %s | %s\n", p.ID, p.CreatedAt)
		if !p.Published {
			yellow.Println("    ⚠ card publish failed, needs re-publish")
		}
		fmt.Println()
	}
	return nil
}

// runToken generates an operator API token and saves it next to the config
// file for the pending subcommand to use.
func runToken() error {
	// Supports both "--subject value" and "--subject=value" formats
	var subject string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--subject" || arg == "-s":
			if i+1 >= len(args) {
				return fmt.Errorf("--subject requires a value")
			}
			subject = args[i+1]
			i++
		case strings.HasPrefix(arg, "--subject="):
			subject = strings.TrimPrefix(arg, "--subject=")
		case strings.HasPrefix(arg, "-s="):
			subject = strings.TrimPrefix(arg, "-s=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return fmt.Errorf("--subject flag is required")
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s", configPath)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	tokenTTL := 30 * 24 * time.Hour
	expiresAt := time.Now().Add(tokenTTL).UTC()

	token, err := verifier.Generate(subject, tokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	tokenPath := filepath.Join(filepath.Dir(configPath), "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Saved token: %s\n", tokenPath)
	fmt.Printf("  Subject: %s (expires %s)\n", subject, expiresAt.Format("Jan 02, 2006"))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("prospector configuration setup")
	fmt.Println("==============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "prospector.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	addr := prompt(reader, "HTTP address", "localhost:8080")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)
	cacheExpiry := prompt(reader, "Contact cache expiry", "168h")

	// Directory
	fmt.Println("\n--- Contact Directory Configuration ---")
	apolloKey := prompt(reader, "Apollo API key (or ${APOLLO_API_KEY})", "${APOLLO_API_KEY}")
	sequenceID := prompt(reader, "Outreach sequence ID", "")

	// AI
	fmt.Println("\n--- Draft Generator Configuration ---")
	provider := prompt(reader, "AI provider (anthropic/gemini)", "anthropic")

	// Slack
	fmt.Println("\n--- Slack Configuration ---")
	channelID := prompt(reader, "Approval channel ID", "")

	// Operator API auth
	fmt.Println("\n--- Operator API Configuration ---")
	jwtSecret := prompt(reader, "JWT secret (empty to generate)", "")
	if jwtSecret == "" {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
		fmt.Println("  (generated a random JWT secret)")
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# prospector configuration\n")
	cfg.WriteString("# Generated by prospector init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  addr: \"%s\"\n", addr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString(fmt.Sprintf("  cache_expiry: \"%s\"\n", cacheExpiry))
	cfg.WriteString("\n")

	cfg.WriteString("directory:\n")
	cfg.WriteString(fmt.Sprintf("  api_key: \"%s\"\n", apolloKey))
	if sequenceID != "" {
		cfg.WriteString(fmt.Sprintf("  sequence_id: \"%s\"\n", sequenceID))
	}
	cfg.WriteString("\n")

	cfg.WriteString("ai:\n")
	cfg.WriteString(fmt.Sprintf("  provider: \"%s\"\n", provider))
	cfg.WriteString("  anthropic_api_key: \"${ANTHROPIC_API_KEY}\"\n")
	cfg.WriteString("  gemini_api_key: \"${GEMINI_API_KEY}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("slack:\n")
	cfg.WriteString("  bot_token: \"${SLACK_BOT_TOKEN}\"\n")
	cfg.WriteString("  signing_secret: \"${SLACK_SIGNING_SECRET}\"\n")
	cfg.WriteString(fmt.Sprintf("  channel_id: \"%s\"\n", channelID))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  prospector serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
