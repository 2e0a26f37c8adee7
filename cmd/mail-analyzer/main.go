package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mailwarden/mailwarden/internal/adapters/manual"
	"github.com/mailwarden/mailwarden/internal/core"
	"github.com/mailwarden/mailwarden/internal/di"
	"go.uber.org/zap"
)

const cliMessageID = "cli-input"

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	source *manual.Provider,
	analyzer *core.Analyzer,
	classifier core.Classifier,
) error {
	defer logger.Sync()

	// Read message from file or stdin
	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
		}
		defer file.Close()
		reader = file
		logger.Info("Reading message from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading message from stdin")
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		logger.Fatal("Failed to read message", zap.Error(err))
	}

	source.Supply(cliMessageID, string(raw))

	startTime := time.Now()
	analysis, err := analyzer.Analyze(context.Background(), core.View{
		Kind:      core.ViewMessage,
		MessageID: cliMessageID,
	})
	if err != nil {
		logger.Fatal("Failed to analyze message", zap.Error(err))
	}
	duration := time.Since(startTime)
	if analysis == nil {
		logger.Fatal("No analysis produced")
	}

	// Print message summary
	fmt.Printf("\n=== Message Summary ===\n")
	fmt.Printf("From: %s\n", analysis.Sender)
	fmt.Printf("Subject: %s\n", analysis.Subject)
	fmt.Printf("Domain: %s\n", analysis.Domain)
	fmt.Printf("\n")

	// Print authentication checks
	fmt.Printf("=== Authentication ===\n")
	printCheck("SPF", analysis.SPF)
	printCheck("DKIM", analysis.DKIM)
	printCheck("DMARC", analysis.DMARC)
	fmt.Printf("Authentication-Results header: %t\n", analysis.HasAuthResults)
	fmt.Printf("Known provider: %t\n", analysis.IsKnownProvider)
	fmt.Printf("\n")

	// Print results
	fmt.Printf("=== Results ===\n")
	fmt.Printf("Security score: %d/100\n", analysis.SecurityScore)
	fmt.Printf("Risk level: %s\n", analysis.RiskLevel)
	if analysis.AIClassification != "" {
		fmt.Printf("Content classification: %s\n", analysis.AIClassification)
	}
	for _, rec := range analysis.Recommendations {
		fmt.Printf("Recommendation: %s\n", rec)
	}
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
	return nil
}

func printCheck(name string, check core.AuthCheckResult) {
	line := fmt.Sprintf("%s: %s", name, check.Status)
	if check.Details != "" {
		line += fmt.Sprintf(" (%s)", check.Details)
	}
	if check.Explanation != "" {
		line += fmt.Sprintf(" - %s", check.Explanation)
	}
	fmt.Println(strings.TrimSpace(line))
}
