// Command feedwatch tails the live OneChurch feed and prints every event.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"onechurch/logger"
	"onechurch/websocket"
)

func main() {
	url := flag.String("url", "ws://localhost:8000/ws", "websocket endpoint")
	token := flag.String("token", os.Getenv("ONECHURCH_TOKEN"), "access token")
	attempts := flag.Int("attempts", 5, "reconnect attempts before giving up")
	flag.Parse()

	if *token == "" {
		logger.Error.Fatal("❌ -token or ONECHURCH_TOKEN is required")
	}

	event := color.New(color.FgCyan, color.Bold).SprintFunc()
	listener := websocket.NewListener(websocket.ListenerConfig{
		URL:         *url,
		Token:       *token,
		MaxAttempts: *attempts,
		OnState: func(s websocket.State) {
			logger.Info.Printf("Connection %s", s)
		},
	}, func(name string, payload json.RawMessage) {
		logger.Info.Printf("%s %s", event(name), payload)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error.Fatalf("❌ %v", err)
	}
	logger.Info.Println("👋 Stopped")
}
