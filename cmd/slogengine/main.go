package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "convert":
		err = runConvert(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "ledger":
		err = runLedger(os.Args[2:])
	case "version":
		fmt.Printf("slogengine %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`slogengine - a personal blogging backend

Usage:
  slogengine <command> [flags]

Commands:
  serve      Run the HTTP API
  convert    Convert JSON posts to Markdown and move legacy images
  import     Import Hashnode posts from an export directory or a feed
  ledger     Show imported posts and failed image downloads
  version    Print the slogengine version
  help       Show this help message

Every command reads SLOG_* environment variables and accepts -config <file.yaml>.

Examples:
  slogengine serve -addr :8080
  slogengine convert -user alice
  slogengine import -user alice -src ./hashnode-export
  slogengine import -user alice -feed https://alice.hashnode.dev/rss.xml`)
}
