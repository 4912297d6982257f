// Command venice-chat is a terminal chat that keeps the conversation in
// memory until "exit".
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jpoz/venice"
	"github.com/jpoz/venice/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	tools := flag.Bool("tools", false, "let the model look up employees with get_user_info")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := config.NewLogger(os.Stderr, cfg.Logging)
	if err != nil {
		log.Fatal(err)
	}

	mods := []venice.Modifier{
		venice.WithToolPhase(cfg.Chat.Sampling()),
		venice.WithLogger(logger),
	}
	if *tools {
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
		mods = append(mods, venice.WithDispatcher(dispatcher))
	}

	chat := venice.NewChat(venice.NewDriver(cfg.NewClient(logger), mods...), cfg.Chat.SystemPrompt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := repl(ctx, chat, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func repl(ctx context.Context, chat *venice.Chat, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "\nUser : ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		prompt := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(prompt, "exit") {
			return nil
		}
		if prompt == "" {
			continue
		}

		fmt.Fprint(out, "\nAgent : ")
		_, err := chat.Send(ctx, prompt, func(text string) {
			fmt.Fprint(out, text)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "\n[error] %v", err)
		}

		fmt.Fprintf(out, "\n\n %s\n", strings.Repeat("=", 50))
	}
}
