package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/omr-mcp/internal/config"
	"github.com/ironsheep/omr-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("omr-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("omr-mcp - MCP server for answer-sheet recognition")
			fmt.Println()
			fmt.Println("Usage: omr-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from ./.env):")
			fmt.Println("  OMR_MCP_LOG_LEVEL=debug             Enable debug logging")
			fmt.Println("  OMR_MCP_TIMEOUT_MS=30000            Default time budget per sheet, 0 for none")
			fmt.Println("  OMR_MCP_OCR_LANG=eng                Tesseract language for header titles")
			fmt.Println("  OMR_MCP_CACHE_LIMIT=32              Decoded images kept in memory")
			fmt.Println("  OMR_MCP_INCLUDE_IMAGES=false        Return diagnostic images by default")
			fmt.Println("  OMR_MCP_REMOVE_SHADOWS=true         Default for config.remove_shadows")
			fmt.Println("  OMR_MCP_ADAPTIVE_THRESHOLD=false    Default for config.use_adaptive_threshold")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := config.LoadDotEnv(); err != nil {
		log.Printf("Ignoring .env: %v", err)
	}
	settings := config.Load()
	if settings.Debug() {
		log.Printf("OMR MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		log.Printf("Settings: %+v", settings)
	}

	server.Version = Version
	srv := server.NewWithSettings(settings)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
