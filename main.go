//	@title			Cockpit API
//	@version		1.0
//	@description	Credential and session service for the cockpit training platform
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/cockpit-trainer/cockpit-api

//	@license.name	MIT

//	@host		localhost:3333
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the access token.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cockpit-trainer/cockpit-api/internal/bootstrap"
	"github.com/cockpit-trainer/cockpit-api/internal/config"
	"github.com/cockpit-trainer/cockpit-api/internal/logger"
	"github.com/cockpit-trainer/cockpit-api/internal/version"

	"github.com/rs/zerolog/log"

	_ "github.com/cockpit-trainer/cockpit-api/api" // swagger docs
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Credential and session API for cockpit training")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the API server")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if err := bootstrap.Run(context.Background(), cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
