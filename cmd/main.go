package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/saint0x/gitfix/pkg/log"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  gitfix serve                       - Start the gitfix server")
	fmt.Println("  gitfix check [--url URL]           - Check if a gitfix server is running")
	fmt.Println("  gitfix token --id ID --login NAME  - Issue a session token for a GitHub user")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --debug   Enable debug logging")
}

// newLogger honors LOG_FORMAT before the rest of the environment is validated
func newLogger(debug bool) *log.Logger {
	return log.NewWithOptions(log.Options{
		Debug: debug || os.Getenv("DEBUG") == "true",
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	})
}

func main() {
	flags := pflag.NewFlagSet("gitfix", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = usage
	debug := flags.Bool("debug", false, "Enable debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	args := flags.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	logger := newLogger(*debug)

	var err error
	switch args[0] {
	case "serve", "start":
		err = handleServe(logger)
	case "check":
		err = handleCheck(logger, args[1:])
	case "token":
		err = handleToken(logger, args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		usage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("❌ %v", err)
		os.Exit(1)
	}
}
