// Command confirm-server serves the opt-in confirmation landing endpoint.
// It shares the token secret with optin-mailer so links generated during a
// bulk run validate here.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ignite/optin-mailer/internal/config"
	"github.com/ignite/optin-mailer/internal/confirm"
	"github.com/ignite/optin-mailer/internal/pkg/logger"
	"github.com/ignite/optin-mailer/internal/token"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		os.Exit(1)
	}

	gen, err := token.NewGenerator(cfg.Token.SecretKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v (set OPTIN_TOKEN_SECRET)\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Confirm.Host, cfg.Confirm.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      confirm.NewHandler(gen).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("confirm server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
