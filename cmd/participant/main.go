package main

import (
	"fmt"
	"os"

	"github.com/mnohosten/transferd/pkg/participant"
)

func main() {
	cfg, err := participant.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "participant: failed to load config: %v\n", err)
		os.Exit(1)
	}

	srv, err := participant.NewServer(cfg, participant.NewStore())
	if err != nil {
		fmt.Fprintf(os.Stderr, "participant: failed to start: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "participant: server error: %v\n", err)
		os.Exit(1)
	}
}
