// Command optin-mailer sends bulk opt-in confirmation emails from a CSV
// subscriber list using a JSON message template.
//
// Usage:
//
//	optin-mailer -config config.yaml -subscribers list.csv -template msg.json send
//	optin-mailer -config config.yaml -subscribers list.csv -template msg.json preview
//	optin-mailer -config config.yaml report
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ignite/optin-mailer/internal/config"
	"github.com/ignite/optin-mailer/internal/dispatch"
	"github.com/ignite/optin-mailer/internal/pkg/logger"
	"github.com/ignite/optin-mailer/internal/provider"
	"github.com/ignite/optin-mailer/internal/resultlog"
	"github.com/ignite/optin-mailer/internal/subscriber"
	"github.com/ignite/optin-mailer/internal/template"
	"github.com/ignite/optin-mailer/internal/token"
)

func main() {
	var (
		configPath      = flag.String("config", "config.yaml", "path to configuration file")
		subscribersPath = flag.String("subscribers", "", "path to subscriber CSV file")
		templatePath    = flag.String("template", "", "path to JSON message template")
		rate            = flag.Float64("rate", 0, "override sends per second")
		dryRun          = flag.Bool("dry-run", false, "render and log without calling the provider")
		verbose         = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	if *rate != 0 {
		cfg.Sending.RateLimit = *rate
	}

	command := flag.Arg(0)
	if command == "" {
		command = "send"
	}

	switch command {
	case "send":
		runSend(cfg, *subscribersPath, *templatePath, *dryRun)
	case "preview":
		runPreview(cfg, *subscribersPath, *templatePath)
	case "report":
		runReport(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want send, preview, or report)\n", command)
		os.Exit(2)
	}
}

func runSend(cfg *config.Config, subscribersPath, templatePath string, dryRun bool) {
	if err := cfg.Validate(); err != nil {
		fatalf("invalid configuration: %v", err)
	}

	subs, skipped, tpl, gen := loadInputs(cfg, subscribersPath, templatePath)

	reportSkipped(skipped)
	if len(subs) == 0 {
		fmt.Println("No valid subscribers to send to.")
		return
	}

	if pf := tpl.PreflightFor(subs[0]); !pf.Valid {
		fmt.Printf("Warning: first subscriber is missing template variables: %v\n", pf.Missing)
	}

	ctx := context.Background()

	var sender provider.Sender
	if dryRun {
		sender = dryRunSender{}
	} else {
		var err error
		sender, err = provider.FromConfig(ctx, cfg)
		if err != nil {
			fatalf("configuring provider: %v", err)
		}
	}

	log, err := resultlog.NewLogger(cfg.Sending.ResultLog)
	if err != nil {
		fatalf("opening result log: %v", err)
	}

	runID := uuid.New().String()
	fmt.Printf("Sending to %d subscribers at %.1f/s (run %s)\n", len(subs), cfg.Sending.RateLimit, runID)

	d := dispatch.New(sender, gen, log, cfg.Sender.FromEmail, cfg.Sender.FromName)
	results, err := d.SendBulk(ctx, subs, tpl, dispatch.Options{
		RateLimit: cfg.Sending.RateLimit,
		RunID:     runID,
		OnProgress: func(p dispatch.Progress) {
			status := "sent"
			if !p.Result.Success {
				status = "FAILED"
			}
			fmt.Printf("[%d/%d] %-6s %s (%.0f%%)\n",
				p.Current, p.Total, status, logger.RedactEmail(p.Result.Email), p.Percentage)
		},
	})
	if err != nil {
		fatalf("bulk send aborted: %v", err)
	}

	var failed int
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	fmt.Printf("\nRun complete: %d sent, %d failed, %d skipped during ingestion.\n",
		len(results)-failed, failed, len(skipped))

	report, err := log.SummaryReport()
	if err != nil {
		fatalf("building summary report: %v", err)
	}
	fmt.Println()
	fmt.Print(report)
}

func runPreview(cfg *config.Config, subscribersPath, templatePath string) {
	subs, skipped, tpl, gen := loadInputs(cfg, subscribersPath, templatePath)

	reportSkipped(skipped)
	if len(subs) == 0 {
		fmt.Println("No valid subscribers to preview.")
		return
	}

	sub := subs[0]
	pf := tpl.PreflightFor(sub)
	fmt.Printf("Template variables required: %v\n", pf.Required)
	fmt.Printf("Subscriber fields available: %v\n", pf.Available)
	if !pf.Valid {
		fmt.Printf("Missing: %v\n", pf.Missing)
	}

	tok, err := gen.TokenFor(sub)
	if err != nil {
		fatalf("deriving token: %v", err)
	}
	out := tpl.RenderForSubscriber(sub, tok)

	fmt.Printf("\nPreview for %s:\n", sub.Email())
	fmt.Printf("Subject: %s\n", out.Subject)
	if out.Text != "" {
		fmt.Printf("\n%s\n", out.Text)
	}
	if out.HTML != "" {
		fmt.Printf("\n--- html ---\n%s\n", out.HTML)
	}
	fmt.Printf("\n%d of %d subscribers valid; no emails were sent.\n", len(subs), len(subs)+len(skipped))
}

func runReport(cfg *config.Config) {
	if _, err := os.Stat(cfg.Sending.ResultLog); err != nil {
		fatalf("result log %s not found", cfg.Sending.ResultLog)
	}

	log, err := resultlog.NewLogger(cfg.Sending.ResultLog)
	if err != nil {
		fatalf("opening result log: %v", err)
	}
	report, err := log.SummaryReport()
	if err != nil {
		fatalf("building summary report: %v", err)
	}
	fmt.Print(report)
}

// loadInputs reads and validates the template, the subscriber list, and the
// token secret. All failures here are structural and fatal.
func loadInputs(cfg *config.Config, subscribersPath, templatePath string) ([]subscriber.Subscriber, []subscriber.SkippedRow, *template.Template, *token.Generator) {
	if subscribersPath == "" {
		fatalf("-subscribers is required")
	}
	if templatePath == "" {
		fatalf("-template is required")
	}

	tpl, err := template.Load(templatePath)
	if err != nil {
		fatalf("%v", err)
	}

	f, err := os.Open(subscribersPath)
	if err != nil {
		fatalf("opening subscriber file: %v", err)
	}
	defer f.Close()

	subs, skipped, err := subscriber.IngestCSV(f)
	if err != nil {
		fatalf("reading subscriber file %s: %v", subscribersPath, err)
	}

	gen, err := token.NewGenerator(cfg.Token.SecretKey)
	if err != nil {
		fatalf("%v (set OPTIN_TOKEN_SECRET)", err)
	}

	return subs, skipped, tpl, gen
}

func reportSkipped(skipped []subscriber.SkippedRow) {
	if len(skipped) == 0 {
		return
	}
	fmt.Printf("Skipped %d rows:\n", len(skipped))
	for _, row := range skipped {
		fmt.Printf("  row %d: %s (%s)\n", row.RowNumber, logger.RedactEmail(row.Email), row.Reason)
	}
}

// dryRunSender satisfies provider.Sender without any network traffic.
type dryRunSender struct{}

func (dryRunSender) Send(_ context.Context, msg *provider.Message) (string, error) {
	return "dry-run-" + uuid.New().String(), nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
