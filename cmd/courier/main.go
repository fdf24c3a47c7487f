// ABOUTME: Entry point for the courier pub/sub broker process
// ABOUTME: Dispatches the serve/init/health/stats subcommands

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/courier/internal/config"
	"github.com/2389/courier/internal/gateway"
)

// version is set by the release pipeline at build time.
var version = "dev"

const banner = `
                          _
  ___ ___  _   _ _ __(_) ___ _ __
 / __/ _ \| | | | '__| |/ _ \ '__|
| (_| (_) | |_| | |  | |  __/ |
 \___\___/ \__,_|_|  |_|\___|_|
`

// getConfigPath returns the path to the courier config file.
// Priority: COURIER_CONFIG env var > XDG_CONFIG_HOME/courier/courier.yaml > ~/.config/courier/courier.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COURIER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "courier.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "courier", "courier.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: courier <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the broker")
		fmt.Println("  init    Create a new config file interactively")
		fmt.Println("  health  Check broker health")
		fmt.Println("  stats   Print broker statistics")
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
	case "health":
		err = runHealth(ctx)
	case "stats":
		err = runStats(ctx)
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

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Listen: %s\n", cfg.Addr())
	green.Print("    ▶ ")
	fmt.Printf("Auth required: %t\n", cfg.Auth.Required)
	fmt.Println()

	logger.Info("starting courier", "config", configPath, "addr", cfg.Addr())

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
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

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{level: level}
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
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

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

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
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
	return &colorHandler{level: h.level, attrs: newAttrs, groups: h.groups}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{level: h.level, attrs: h.attrs, groups: newGroups}
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println(string(body))
	return nil
}

func runStats(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/stats", cfg.Addr())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("stats request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(body))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("courier configuration setup")
	fmt.Println("============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	host := prompt(reader, "Listen host", "0.0.0.0")
	port := prompt(reader, "Listen port", "8080")

	fmt.Println("\n--- Authentication ---")
	authRequired := strings.ToLower(prompt(reader, "Require auth?", "no"))
	requireAuth := authRequired == "yes" || authRequired == "y"
	var authSecret string
	if requireAuth {
		authSecret = prompt(reader, "HMAC secret (min 32 bytes)", "")
	}

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# courier configuration\n")
	cfg.WriteString("# Generated by courier init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  host: \"%s\"\n", host))
	cfg.WriteString(fmt.Sprintf("  port: %s\n", port))
	cfg.WriteString("  heartbeat_interval_seconds: 30\n")
	cfg.WriteString("  outbound_queue_capacity: 64\n")
	cfg.WriteString("  shutdown_deadline_seconds: 30\n")
	cfg.WriteString("  channel_prune_interval_seconds: 60\n")
	cfg.WriteString("  channel_prune_grace_seconds: 300\n")
	cfg.WriteString("  rate_limit_bucket_ttl_seconds: 600\n\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  required: %t\n", requireAuth))
	if requireAuth {
		cfg.WriteString(fmt.Sprintf("  secret: \"%s\"\n", authSecret))
	}
	cfg.WriteString("  algorithm: \"HS256\"\n\n")

	cfg.WriteString("validation:\n")
	cfg.WriteString("  max_event_bytes: 1048576\n")
	cfg.WriteString("  max_string_length: 10000\n")
	cfg.WriteString("  max_array_length: 1000\n")
	cfg.WriteString("  allowed_event_types: []\n\n")

	cfg.WriteString("rate_limit:\n")
	cfg.WriteString("  default:\n")
	cfg.WriteString("    tokens_per_second: 10\n")
	cfg.WriteString("    burst_size: 20\n\n")

	cfg.WriteString("channels:\n")
	cfg.WriteString("  preconfigured: [\"global\"]\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the broker:")
	fmt.Println("  courier serve")

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
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
