// Command venice-tools runs the two-phase tool calling exchange for each
// prompt and streams the answers to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/jpoz/venice"
	"github.com/jpoz/venice/config"
)

var defaultPrompts = []string{
	"What is Jean Dupont's position?",
	"Who is Marie Curie?",
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := config.NewLogger(os.Stderr, cfg.Logging)
	if err != nil {
		log.Fatal(err)
	}

	dir, err := cfg.NewDirectory()
	if err != nil {
		log.Fatal(err)
	}
	capability, err := dir.Capability()
	if err != nil {
		log.Fatal(err)
	}
	dispatcher, err := venice.NewDispatcher(capability)
	if err != nil {
		log.Fatal(err)
	}

	driver := venice.NewDriver(cfg.NewClient(logger),
		venice.WithDispatcher(dispatcher),
		venice.WithToolPhase(cfg.ToolPhase.Sampling()),
		venice.WithFinalPhase(cfg.FinalPhase.Sampling()),
		venice.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prompts := flag.Args()
	if len(prompts) == 0 {
		prompts = defaultPrompts
	}

	for i, prompt := range prompts {
		if i > 0 {
			fmt.Print("\n---\n\n")
		}

		messages := []venice.Message{
			venice.NewTextMessage(venice.RoleSystem, cfg.SystemPrompt),
			venice.NewTextMessage(venice.RoleUser, prompt),
		}

		fmt.Print("Assistant: ")
		_, err := driver.Run(ctx, messages, func(text string) {
			fmt.Print(text)
		})
		fmt.Println()
		if err != nil {
			log.Fatal(err)
		}
	}
}
