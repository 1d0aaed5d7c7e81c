package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/card-intake/internal/directory"
	"github.com/zombor/card-intake/internal/handoff"
	"github.com/zombor/card-intake/internal/intake"
	"github.com/zombor/card-intake/internal/jobs"
	"github.com/zombor/card-intake/internal/relay"
	"github.com/zombor/card-intake/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine, the environment and flags still apply
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env", "error", err)
	}

	fs := ff.NewFlagSet("card-intake")
	var (
		port              = fs.IntLong("port", 8080, "HTTP server port")
		dbPath            = fs.StringLong("db", "card-intake.db", "Database file path")
		storagePath       = fs.StringLong("storage", "./cards", "Card image directory")
		scannerType       = fs.StringLong("scanner", "ocrspace", "Scanner type: 'ocrspace', 'gemini' or 'ollama'")
		ocrKey            = fs.StringLong("ocr-key", "", "OCR.space API key")
		ocrURL            = fs.StringLong("ocr-url", "", "OCR.space endpoint (defaults to the public API)")
		geminiKey         = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel       = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL         = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel       = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		authUser          = fs.StringLong("auth-user", "", "Basic auth username for the admin API (optional)")
		authPass          = fs.StringLong("auth-pass", "", "Basic auth password for the admin API (optional)")
		sheetURL          = fs.StringLong("sheet-url", "", "Spreadsheet form collector endpoint")
		formspreeURL      = fs.StringLong("formspree-url", "", "Formspree endpoint")
		resendKey         = fs.StringLong("resend-key", "", "Resend API key for confirmation emails")
		resendFrom        = fs.StringLong("resend-from", "", "Sender for confirmation emails")
		emailJSService    = fs.StringLong("emailjs-service", "", "EmailJS service ID")
		emailJSTemplate   = fs.StringLong("emailjs-template", "", "EmailJS template ID")
		emailJSPublicKey  = fs.StringLong("emailjs-public-key", "", "EmailJS public key")
		emailJSPrivateKey = fs.StringLong("emailjs-private-key", "", "EmailJS private key")
		retention         = fs.DurationLong("retention", jobs.DefaultRetention, "How long card scans are kept")
		showVersion       = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CARD_INTAKE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := intake.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "ocrspace":
		slog.Info("Initializing OCR.space scanner...")
		scanner, err = scanning.NewOCRSpace(*ocrKey, *ocrURL)
		if err != nil {
			slog.Error("Failed to initialize OCR.space", "error", err)
			os.Exit(1)
		}
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "ocrspace, gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := intake.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize relays, in order of importance
	var relays []relay.Relay
	if *sheetURL != "" {
		relays = append(relays, relay.NewFormRelay("sheet", *sheetURL, true))
	}
	if *formspreeURL != "" {
		relays = append(relays, relay.NewFormRelay("formspree", *formspreeURL, true).WithMailerFields())
	}
	if *emailJSService != "" && *emailJSTemplate != "" && *emailJSPublicKey != "" {
		relays = append(relays, relay.NewEmailJSRelay(relay.EmailJSConfig{
			ServiceID:  *emailJSService,
			TemplateID: *emailJSTemplate,
			PublicKey:  *emailJSPublicKey,
			PrivateKey: *emailJSPrivateKey,
		}))
	}
	if *resendKey != "" {
		relays = append(relays, relay.NewResendRelay(*resendKey, *resendFrom))
	}
	dispatcher := relay.NewDispatcher(15*time.Second, relays...)
	if len(relays) == 0 {
		slog.Warn("No relays configured, leads are only stored locally")
	} else {
		slog.Info("Relays configured", "relays", dispatcher.Relays())
	}

	// Initialize directory
	dir, err := directory.Builtin()
	if err != nil {
		slog.Error("Failed to load provider directory", "error", err)
		os.Exit(1)
	}

	// Initialize service
	hub := handoff.NewHub(handoff.DefaultTTL)
	intakeService := intake.NewService(db, scanner, store, dispatcher)

	// Initialize background jobs
	scheduler := jobs.NewScheduler(hub, intakeService, *retention)
	if err := scheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize server
	basicAuth := intake.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := intake.NewServer(intakeService, hub, dir, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "providers", dir.Len())
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	<-scheduler.Stop().Done()
}
