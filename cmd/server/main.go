// Package main is the entry point for the pianodaw API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/james-see/pianodaw/pkg/api"
	"github.com/james-see/pianodaw/pkg/config"
	"github.com/james-see/pianodaw/pkg/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	port := flag.Int("port", cfg.Port, "Server port")
	project := flag.String("project", "", "Project file to open")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "pianodaw", ReportTimestamp: true})
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	sess := session.New(cfg, logger)
	if *project != "" {
		if err := sess.Open(*project); err != nil {
			fmt.Fprintf(os.Stderr, "Open error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Starting pianodaw API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(sess, *port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
