package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"mcp-math/agent"
	mcpclient "mcp-math/mcp-client"
	"mcp-math/shared"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := shared.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Load config failed")
	}
	shared.SetupLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	prompt := cfg.Chat.Prompt
	if flag.NArg() > 0 {
		prompt = strings.Join(flag.Args(), " ")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg.Chat, prompt); err != nil {
		log.Error().Err(err).Msg("Chat failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg shared.ChatConfig, prompt string) error {
	mgr := mcpclient.NewclientMgr()
	defer mgr.Close()

	if _, err := mgr.NewMCPClient(ctx, cfg.MCPURL); err != nil {
		return err
	}
	endpoints, err := mgr.LoadAllTools(ctx)
	if err != nil {
		return err
	}

	a := agent.NewAgent(agent.NewOpenAIClient(cfg), cfg.Model)
	if err := a.AddTools(endpoints); err != nil {
		return err
	}
	fmt.Printf("Available tools: %s\n", strings.Join(a.ToolNames(), ", "))

	answer, err := a.Ask(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Print(answer.String())
	if !answer.UsedTools() {
		fmt.Println()
	}
	if answer.Failed() {
		return fmt.Errorf("a tool call failed")
	}
	return nil
}
