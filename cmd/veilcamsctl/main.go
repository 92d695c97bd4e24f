package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xDexFi/veilcams/internal/audit"
	"github.com/0xDexFi/veilcams/internal/config"
	"github.com/0xDexFi/veilcams/internal/domain"
	"github.com/0xDexFi/veilcams/internal/logging"
	"github.com/0xDexFi/veilcams/internal/workflow"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to assessment config YAML file (required)")
		outDir      = flag.String("out", "", "Output directory (overrides config setting)")
		sessionID   = flag.String("session-id", "", "Custom session ID (overrides config setting)")
		verbose     = flag.Bool("verbose", false, "Enable debug-level logging")
		versionFlag = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Printf("veilcamsctl v%s (%s)\n", version, commit)
		os.Exit(0)
	}

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: --config is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	level := logrus.InfoLevel
	if *verbose {
		level = logrus.DebugLevel
	}
	logging.Setup(level, "")

	loader := config.NewLoader(filepath.Dir(*configFile))
	cfg, err := loader.Load(filepath.Base(*configFile))
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if *sessionID != "" {
		cfg.SessionID = *sessionID
	}
	if cfg.SessionID == "" {
		cfg.SessionID = fmt.Sprintf("session-%d", time.Now().Unix())
	}

	sessDir := filepath.Join(cfg.OutDir, cfg.SessionID)
	if err := os.MkdirAll(sessDir, 0o755); err != nil {
		logrus.WithError(err).Fatal("failed to create session directory")
	}

	sess, err := audit.NewSession(sessDir)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open audit session")
	}
	defer sess.Close()

	logging.Setup(level, filepath.Join(sessDir, "veilcamsctl.log"))

	logrus.WithFields(logrus.Fields{
		"session_id": cfg.SessionID,
		"targets":    len(cfg.Targets),
	}).Info("starting assessment")

	engine := workflow.NewEngine(cfg, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startTime := time.Now()
	result, err := engine.Execute(ctx)
	duration := time.Since(startTime)

	if err != nil {
		logrus.WithError(err).WithField("duration", duration).Error("assessment failed")
		printSummary(result, duration)
		os.Exit(1)
	}

	logrus.WithField("duration", duration).Info("assessment completed")
	printSummary(result, duration)

	if result.Status == domain.SessionFailed {
		os.Exit(1)
	}
}

func printSummary(result workflow.Result, duration time.Duration) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("ASSESSMENT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Status:   %s\n", result.Status)
	fmt.Printf("Duration: %s\n", duration)

	fmt.Printf("\nDISCOVERY:\n")
	fmt.Printf("  Hosts discovered: %d\n", len(result.Discovery.Hosts))

	fmt.Printf("\nFINGERPRINTING:\n")
	fmt.Printf("  Hosts fingerprinted: %d\n", len(result.Fingerprints))

	fmt.Printf("\nCREDENTIAL TESTING:\n")
	fmt.Printf("  Attempts: %d\n", result.Credentials.Attempts)
	fmt.Printf("  Successful logins: %d\n", result.Credentials.SuccessfulLogins)
	fmt.Printf("  Compromised hosts: %d\n", len(result.Credentials.CompromisedHosts))

	fmt.Printf("\nCVE SCANNING:\n")
	fmt.Printf("  Checks run: %d\n", len(result.CVEs.Results))
	fmt.Printf("  Vulnerable hosts: %d\n", result.CVEs.VulnerableCount)

	fmt.Printf("\nPROTOCOL FUZZING:\n")
	fmt.Printf("  Findings: %d\n", len(result.Findings.Findings))

	if len(result.Exploitation) > 0 {
		fmt.Printf("\nEXPLOITATION:\n")
		succeeded := 0
		for _, o := range result.Exploitation {
			if o.Succeeded {
				succeeded++
			}
		}
		fmt.Printf("  Attempted: %d\n", len(result.Exploitation))
		fmt.Printf("  Succeeded: %d\n", succeeded)
	}

	fmt.Println(strings.Repeat("=", 60))
}
