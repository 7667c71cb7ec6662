package main

import (
	"fmt"
	"os"

	"github.com/mnohosten/transferd/pkg/auth"
	"github.com/mnohosten/transferd/pkg/coordinator"
	"github.com/mnohosten/transferd/pkg/diagnostics"
	"github.com/mnohosten/transferd/pkg/txlog"
)

func main() {
	cfg, err := coordinator.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := txlog.Open(cfg.TransactionLogDir + "/transactions.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: failed to open transaction log: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	authMgr, err := auth.NewManager(cfg.TokenSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}

	factory := coordinator.NewHTTPParticipantFactory(cfg.ParticipantURL, authMgr, nil)
	diag := diagnostics.NewEmitter(os.Stderr)
	coord := coordinator.New(log, factory, cfg.Timeouts(), diag, nil)

	sweeper := coordinator.NewSweeper(coord, cfg.TransactionTimeout, cfg.TransactionTimeout)
	go sweeper.Run()
	defer sweeper.Stop()

	srv, err := coordinator.NewServer(cfg, coord, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: failed to start: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: server error: %v\n", err)
		os.Exit(1)
	}
}
