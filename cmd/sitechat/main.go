package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pachverse/sitechat/internal/profile"
	"github.com/pachverse/sitechat/plugin/ai"
	"github.com/pachverse/sitechat/server"
	"github.com/pachverse/sitechat/server/knowledge"
	"github.com/pachverse/sitechat/store"
	"github.com/pachverse/sitechat/store/db"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "sitechat",
		Short: "Retrieval-augmented chat backend for a personal website",
	}

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of the server: "prod" or "dev"`)
	flags.String("addr", "", "address of the server")
	flags.Int("port", 8000, "port of the server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", `database driver: "postgres" or "sqlite"`)
	flags.String("dsn", "", "database source name")
	flags.String("knowledge-dir", "./knowledge", "knowledge base directory")
	flags.String("default-language", "zh", `default reply language: "zh" or "en"`)

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("sitechat")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(newServeCmd(v), newIndexCmd(v), newStatsCmd(v))
	return rootCmd
}

func loadProfile(v *viper.Viper) (*profile.Profile, error) {
	p := profile.FromViper(v, version)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	setupLogger(p)
	return p, nil
}

// setupLogger configures the process-wide slog default: human-readable text
// in dev, JSON in prod.
func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p, err := loadProfile(v)
			if err != nil {
				return err
			}

			st, err := openStore(ctx, p)
			if err != nil {
				return err
			}

			s, err := server.NewServer(ctx, p, st)
			if err != nil {
				st.Close()
				return err
			}

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigc
				slog.Info("shutting down", slog.String("signal", sig.String()))
				s.Shutdown(context.Background())
				cancel()
			}()

			return s.Start(ctx)
		},
	}
}

func newIndexCmd(v *viper.Viper) *cobra.Command {
	var reindex bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the knowledge base directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			p, err := loadProfile(v)
			if err != nil {
				return err
			}

			st, err := openStore(ctx, p)
			if err != nil {
				return err
			}
			defer st.Close()

			provider, err := ai.NewProvider(&ai.Config{
				BaseURL:          p.OpenAIBaseURL,
				APIKey:           p.OpenAIAPIKey,
				ChatModel:        p.ChatModel,
				EmbeddingModel:   p.EmbeddingModel,
				MaxContextTokens: p.MaxContextTokens,
			})
			if err != nil {
				return err
			}

			indexer := knowledge.NewIndexer(provider, st, p.ChunkTokenBudget)
			var result *knowledge.IndexResult
			if reindex {
				result, err = indexer.Reindex(ctx, p.KnowledgeDir)
			} else {
				result, err = indexer.IndexDir(ctx, p.KnowledgeDir)
			}
			if err != nil {
				return err
			}

			fmt.Printf("indexed %d documents into %d chunks (%d failed) in %s\n",
				result.Documents, result.Chunks, len(result.Failed), result.Elapsed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reindex, "reindex", false, "drop the existing index before indexing")
	return cmd
}

func newStatsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print knowledge index statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			p, err := loadProfile(v)
			if err != nil {
				return err
			}

			st, err := openStore(ctx, p)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.KnowledgeStats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("chunks:  %d\nsources: %d\nbytes:   %d\n",
				stats.ChunkCount, stats.SourceCount, stats.ContentBytes)
			return nil
		},
	}
}
