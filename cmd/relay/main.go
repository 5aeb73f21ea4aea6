package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/upb/chat-relay/app"
	"github.com/upb/chat-relay/config"
	"github.com/upb/chat-relay/handlers"
	"github.com/upb/chat-relay/internal/observability"
	"github.com/upb/chat-relay/repositories/memory"
	"github.com/upb/chat-relay/routes"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "relay",
		Short: "Chat relay with provider failover and response caching",
		Long: `Relay answers chat prompts through a prioritized list of LLM providers,
falling back to the next provider on failure and caching every reply.

Providers are configured through <PROVIDER>_API_KEY, <PROVIDER>_API_URL and
<PROVIDER>_MODEL environment variables, or a YAML file named by PROVIDERS_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newAskCommand())
	root.AddCommand(newProvidersCommand())
	return root
}

// --- serve command ---

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			deps, err := app.NewDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing dependencies: %w", err)
			}

			return serve(cmd.Context(), deps)
		},
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests within the configured shutdown timeout
func serve(ctx context.Context, deps *app.Dependencies) error {
	cfg := deps.Config
	logger := deps.Logger

	srv := routes.NewServer(deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat relay listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment))
		if cfg.IsDevelopment() {
			logger.Warn("running in development mode")
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = deps.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	logger.Info("chat relay stopped")
	return errors.Join(errs...)
}

// --- ask command ---

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a single prompt and print the reply",
		Long: `Send one prompt through the same cache and failover path as POST /chat
and print the reply. With --json the full {reply, provider, cached} object
is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			asJSON, _ := cmd.Flags().GetBool("json")
			noCache, _ := cmd.Flags().GetBool("no-cache")

			cfg, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			var deps *app.Dependencies
			if noCache {
				deps, err = app.NewDependenciesWithStore(cfg, memory.NewCacheRepository(), logger)
			} else {
				deps, err = app.NewDependencies(cmd.Context(), cfg, logger)
			}
			if err != nil {
				return fmt.Errorf("initializing dependencies: %w", err)
			}
			defer func() { _ = deps.Close(context.Background()) }()

			return ask(cmd.Context(), cmd.OutOrStdout(), deps, args[0], provider, asJSON)
		},
	}
	cmd.Flags().StringP("provider", "p", "", "provider to try first")
	cmd.Flags().Bool("json", false, "print the reply as JSON")
	cmd.Flags().Bool("no-cache", false, "use a throwaway in-memory cache instead of the configured store")
	return cmd
}

func ask(ctx context.Context, out io.Writer, deps *app.Dependencies, prompt, provider string, asJSON bool) error {
	result, err := deps.Engine.GetReply(ctx, prompt, provider)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(handlers.ChatResponse{
			Reply:    result.Reply,
			Provider: result.Provider,
			Cached:   result.Cached,
		})
	}

	_, err = fmt.Fprintln(out, result.Reply)
	return err
}

// --- providers command ---

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and the effective priority order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// listing never touches the cache, so skip connecting to the store
			deps, err := app.NewDependenciesWithStore(cfg, memory.NewCacheRepository(), logger)
			if err != nil {
				return fmt.Errorf("initializing dependencies: %w", err)
			}

			return listProviders(cmd.OutOrStdout(), deps)
		},
	}
}

func listProviders(out io.Writer, deps *app.Dependencies) error {
	priority := deps.Engine.Priority()
	rank := make(map[string]int, len(priority))
	for i, key := range priority {
		rank[key] = i + 1
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tCONFIGURED\tPRIORITY")
	for _, key := range deps.Registry.Keys() {
		position := "-"
		if r, ok := rank[key]; ok {
			position = strconv.Itoa(r)
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", key, deps.Registry.Configured(key), position)
	}
	return tw.Flush()
}

// setup loads configuration and builds the process logger
func setup(ctx context.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, logger, nil
}
