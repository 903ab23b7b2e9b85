package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/AINewsletter/internal/config"
	"github.com/TobiSchelling/AINewsletter/internal/database"
	"github.com/TobiSchelling/AINewsletter/internal/pipeline"
	"github.com/TobiSchelling/AINewsletter/internal/server"
	"github.com/TobiSchelling/AINewsletter/internal/topics"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfgFile    string
	cfg        *config.Config
)

var errNoTopics = errors.New("no topics to process")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "ainewsletter",
	Short:        "AI-powered newsletter generator",
	Long:         "ainewsletter fetches news on your topics or today's trending headlines, summarizes them with an LLM and emails the result as an HTML newsletter.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfgFile = path
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ainewsletter", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/ainewsletter/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Put your API keys and email credentials in the environment or a .env file.")
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, credentials and archive status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			fmt.Println("Config: built-in defaults")
		} else {
			fmt.Printf("Config: %s\n", cfgFile)
		}
		fmt.Printf("Summarizer: %s", cfg.Summarization.Provider)
		if cfg.Summarization.Model != "" {
			fmt.Printf(" (%s)", cfg.Summarization.Model)
		}
		fmt.Println()
		fmt.Printf("Trending source: %s\n", cfg.Topics.Trending.Provider)
		if len(cfg.Topics.List) > 0 {
			fmt.Printf("Configured topics: %s\n", strings.Join(cfg.Topics.List, ", "))
		}

		fmt.Println("\nCredentials:")
		for _, env := range credentialEnvs() {
			state := "missing"
			if _, err := config.RequireEnv(env, ""); err == nil {
				state = "set"
			}
			fmt.Printf("  %s: %s\n", env, state)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		if db == nil {
			fmt.Println("\nArchive: disabled")
			return nil
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		fmt.Printf("\nArchive: %s\n", db.Path())
		fmt.Printf("  Runs: %d (%d sent, %d failed)\n", stats.Runs, stats.SentRuns, stats.FailedRuns)
		fmt.Printf("  Sections: %d (%d failed)\n", stats.Sections, stats.FailedSections)
		if stats.LastRunDate != "" {
			fmt.Printf("  Last run: %s\n", database.FormatDateDisplay(stats.LastRunDate))
		}
		return nil
	},
}

func credentialEnvs() []string {
	envs := []string{cfg.Articles.APIKeyEnv}
	if cfg.Summarization.Provider != "ollama" {
		key := cfg.Summarization.APIKeyEnv
		if key == "" {
			key = strings.ToUpper(cfg.Summarization.Provider) + "_API_KEY"
		}
		envs = append(envs, key)
	}
	if cfg.Topics.Trending.Provider == "gnews" {
		envs = append(envs, cfg.Topics.Trending.APIKeyEnv)
	}
	if cfg.Email.Enabled {
		envs = append(envs, cfg.Email.SenderEnv, cfg.Email.PasswordEnv, cfg.Email.ReceiverEnv)
	}
	return envs
}

// --- trending command ---

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Print the current trending topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := topics.NewTrending(cfg.Topics.Trending)
		if err != nil {
			return err
		}
		list := topics.Resolve(cmd.Context(), src)
		if len(list) == 0 {
			fmt.Println("No trending topics fetched.")
			return errNoTopics
		}
		for i, t := range list {
			fmt.Printf("  %d. %s\n", i+1, t)
		}
		return nil
	},
}

// --- history command ---

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent newsletter runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if db == nil {
			fmt.Println("Archive is disabled (archive.enabled: false).")
			return nil
		}
		defer db.Close()

		runs, err := db.GetRecentRuns(historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No newsletters generated yet. Run 'ainewsletter run' to create one.")
			return nil
		}

		for _, r := range runs {
			sent := "not sent"
			if r.Sent {
				sent = "sent"
			}
			fmt.Printf("%s  %-9s %-8s %-9s %s\n", database.FormatDateDisplay(r.RunDate), r.Status, sent, r.TopicSource, strings.Join(r.Topics, ", "))
			if verbose {
				fmt.Printf("    id: %s\n", r.ID)
				if r.Error != "" {
					fmt.Printf("    error: %s\n", r.Error)
				}
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
}

// --- run command ---

var (
	runTopics   string
	runTrending bool
	noSend      bool
	dryRun      bool
	outputPath  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate the newsletter: fetch -> summarize -> compile -> save -> send",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		// Credentials are checked here, before any trending request goes out.
		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		list, source, err := resolveTopics(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println(noTopicsMessage(source))
			return errNoTopics
		}
		fmt.Printf("Topics (%s): %s\n", source, strings.Join(list, ", "))

		opts := pipeline.Options{SkipSend: noSend, TopicSource: source, OutputPath: outputPath}
		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(list, opts)
		} else {
			result = pipe.Run(ctx, list, opts)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if dryRun {
			return nil
		}

		if result.Failed() {
			return fmt.Errorf("newsletter run failed: %w", result.Err())
		}
		if result.Sent {
			fmt.Println("\nNewsletter sent successfully!")
		} else {
			fmt.Printf("\nNewsletter saved to %s\n", result.OutputPath)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runTopics, "topics", "t", "", "Comma-separated topics")
	runCmd.Flags().BoolVar(&runTrending, "trending", false, "Use trending topics")
	runCmd.Flags().BoolVar(&noSend, "no-send", false, "Save the newsletter without emailing it")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default from config)")
}

// resolveTopics picks the run's topics: --topics, then --trending, then the
// configured list, then the trending provider.
func resolveTopics(ctx context.Context) ([]string, string, error) {
	if runTopics != "" {
		return topics.Parse(runTopics), "custom", nil
	}
	if !runTrending && len(cfg.Topics.List) > 0 {
		list, _ := topics.Static(cfg.Topics.List).Topics(ctx)
		return list, "config", nil
	}
	src, err := topics.NewTrending(cfg.Topics.Trending)
	if err != nil {
		return nil, "", err
	}
	return topics.Resolve(ctx, src), "trending", nil
}

func noTopicsMessage(source string) string {
	switch source {
	case "custom":
		return "No topics given: --topics only contained separators."
	case "config":
		return "No topics in the configured topic list."
	default:
		return "No trending topics fetched."
	}
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the newsletter form on a local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		pipe, err := pipeline.New(cfg, db)
		if err != nil {
			return err
		}

		trending, err := topics.NewTrending(cfg.Topics.Trending)
		if err != nil {
			log.Printf("Trending topics unavailable: %v", err)
			trending = nil
		}

		srv, err := server.New(db, pipe, trending)
		if err != nil {
			return err
		}

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port != 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.ListenAndServe(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// openDB opens the run archive, or returns nil when archiving is disabled.
func openDB() (*database.DB, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	return database.OpenInDir(cfg.GetDataDir())
}
