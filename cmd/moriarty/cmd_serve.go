package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caseforge/moriarty/internal/runarchive"
	"github.com/caseforge/moriarty/internal/server"
)

var serveFlags struct {
	addr       string
	configPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for submitting and observing runs",
	Long: `Starts the HTTP server. POST /runs submits a generation request,
GET /runs/{id}/events streams progress as Server-Sent Events, and
GET /runs/{id}/result returns the terminal record.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", ":8080", "Listen address")
	f.StringVar(&serveFlags.configPath, "config", "", "Run config YAML (defaults apply when omitted)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig(serveFlags.configPath)
	if err != nil {
		return err
	}
	gen, _, err := buildGenerator(cfg)
	if err != nil {
		return err
	}
	archive, err := runarchive.Open(cfg.ArchivePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run archive unavailable: %v\n", err)
		archive = nil
	} else {
		defer archive.Close()
	}

	srv := server.New(server.Config{Addr: serveFlags.addr}, cfg, gen, archive)
	return srv.ListenAndServe()
}
