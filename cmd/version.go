package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(*cobra.Command, []string) error {
			return runVersion()
		},
	}
}

func runVersion() error {
	fmt.Printf("Loreweaver %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	// Presence check only, never print key material
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fmt.Println("GEMINI_API_KEY: configured")
	} else {
		fmt.Println("GEMINI_API_KEY: not set")
		fmt.Println("Hint: export GEMINI_API_KEY=your-api-key")
	}

	return nil
}
