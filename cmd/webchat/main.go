package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stellarlinkco/webchat/internal/completion"
	"github.com/stellarlinkco/webchat/internal/config"
	"github.com/stellarlinkco/webchat/internal/relay"
	"github.com/stellarlinkco/webchat/internal/retrieval"
	"github.com/stellarlinkco/webchat/internal/server"
	"github.com/stellarlinkco/webchat/internal/tools"
)

var rootCmd = &cobra.Command{
	Use:   "webchat",
	Short: "webchat - browser chat assistant with a web retrieval tool",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show webchat configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	srv, err := buildServer(cfg)
	if err != nil {
		return err
	}

	if err := srv.Start(cmd.Context()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("[webchat] shutting down...")
	return srv.Stop()
}

// buildServer wires the relay behind the HTTP server. A missing completion
// credential is not fatal here; the chat handler answers 500 until it is set.
func buildServer(cfg *config.Config) (*server.Server, error) {
	var handler server.TurnHandler

	if cfg.Completion.APIKey != "" {
		client, err := completion.NewClient(cfg.Completion)
		if err != nil {
			return nil, fmt.Errorf("create completion client: %w", err)
		}
		registry := tools.NewRegistry(cfg.Retrieval)
		retriever := retrieval.NewClient(cfg.Retrieval)
		handler = relay.New(client, retriever, registry)
	} else {
		log.Printf("[webchat] completion api key not configured; chat requests will fail until it is set")
	}
	if cfg.Retrieval.APIKey == "" {
		log.Printf("[webchat] retrieval api key not configured; chat requests will fail until it is set")
	}

	return server.New(cfg, handler), nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Printf("Config already exists at %s\n", config.ConfigPath())
		return nil
	}

	if err := config.SaveConfig(config.DefaultConfig()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("Wrote default config to %s\n", config.ConfigPath())
	fmt.Println("Set completion.apiKey and retrieval.apiKey (or OPENAI_API_KEY / FIRECRAWL_API_KEY) before serving.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Printf("Config file:       %s\n", config.ConfigPath())
	fmt.Printf("Model:             %s\n", cfg.Completion.Model)
	fmt.Printf("Completion key:    %s\n", keyStatus(cfg.Completion.APIKey))
	fmt.Printf("Retrieval key:     %s\n", keyStatus(cfg.Retrieval.APIKey))
	fmt.Printf("Retrieval limit:   %d (max %d)\n", cfg.Retrieval.DefaultLimit, cfg.Retrieval.MaxLimit)
	fmt.Printf("Listen address:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	return nil
}

func keyStatus(key string) string {
	if key == "" {
		return "not set"
	}
	return "set"
}
