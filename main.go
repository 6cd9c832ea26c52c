package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/satriahrh/cocoa-fruit/relay/adapters/http"
	"github.com/satriahrh/cocoa-fruit/relay/adapters/llm"
	"github.com/satriahrh/cocoa-fruit/relay/adapters/message_broker"
	"github.com/satriahrh/cocoa-fruit/relay/adapters/store"
	"github.com/satriahrh/cocoa-fruit/relay/adapters/websocket"
	"github.com/satriahrh/cocoa-fruit/relay/config"
	"github.com/satriahrh/cocoa-fruit/relay/domain"
	"github.com/satriahrh/cocoa-fruit/relay/usecase"
	"github.com/satriahrh/cocoa-fruit/relay/utils/log"
	"github.com/satriahrh/cocoa-fruit/relay/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	err := newRootCommand().ExecuteContext(context.Background())
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "relay",
		Short:        "Streaming chat relay for local and Gemini models",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCommand(), newVersionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var configPath, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file (yaml, json or toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func newVersionCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			switch output {
			case "short":
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
			case "json":
				s, err := info.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s)
			case "text", "":
				fmt.Fprintln(cmd.OutOrStdout(), info.Text())
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or short")
	return cmd
}

func buildModels(ctx context.Context, cfg config.Config) (map[domain.ModelKind]domain.Llm, error) {
	openai, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	models := map[domain.ModelKind]domain.Llm{domain.ModelOpenAI: openai}

	if !cfg.Gemini.Enabled {
		return models, nil
	}
	gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	if err != nil {
		log.WithCtx(ctx).Warn("⚠️ Gemini disabled", zap.Error(err))
		return models, nil
	}
	models[domain.ModelGemini] = gemini
	return models, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defaultModel, err := domain.ParseModel(cfg.Relay.DefaultModel, domain.ModelOpenAI)
	if err != nil {
		return fmt.Errorf("relay.default_model: %w", err)
	}

	models, err := buildModels(ctx, cfg)
	if err != nil {
		return err
	}

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	svc := usecase.NewChatService(
		store.NewMemoryStore(),
		models,
		usecase.WithBroker(broker),
		usecase.WithDefaultModel(defaultModel),
		usecase.WithIdleTimeout(cfg.Relay.IdleTimeout),
	)

	wsServer := websocket.NewServer(svc, broker)
	e := http.NewRouter(http.NewChatHandler(svc), http.RouterConfig{
		BodyLimit:   cfg.Server.BodyLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	e.GET("/ws/:session_id", wsServer.Handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wsServer.Run(gctx)
	})
	g.Go(func() error {
		log.WithCtx(gctx).Info("🚀 Starting server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("default_model", string(defaultModel)))
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.WithCtx(ctx).Info("🔒 Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
