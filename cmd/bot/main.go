package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hwbot/internal/app"
	"hwbot/internal/config"
)

func main() {
	var cfgPath, envPath string
	flag.StringVar(&cfgPath, "config", "", "path to config json/yaml (optional; environment alone is enough)")
	flag.StringVar(&envPath, "env", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadDotEnv(envPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: cfgPath})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)

	if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
