package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/helmward/agentgov/pkg/model"
	"github.com/helmward/agentgov/pkg/observer"
	"github.com/helmward/agentgov/pkg/signing"
)

// runVerifyChainCmd implements `helmgov verify-chain`: replays a
// serialized observer event log and checks its hash chain and
// per-event signatures, the evidentiary guarantee the matrix router
// and council decisions rely on for tamper-evidence.
//
// Exit codes:
//
//	0 = chain and all signatures verified
//	1 = verification failed
//	2 = runtime or argument error
func runVerifyChainCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify-chain", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		eventsPath string
		keySeed    string
		jsonOut    bool
	)
	cmd.StringVar(&eventsPath, "events", "", "Path to a JSON array of observer events (REQUIRED)")
	cmd.StringVar(&keySeed, "key-seed", "", "Signing key seed used to derive per-agent HMAC keys")
	cmd.BoolVar(&jsonOut, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if eventsPath == "" {
		fmt.Fprintln(stderr, "Error: --events is required")
		return 2
	}

	data, err := os.ReadFile(eventsPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: read events: %v\n", err)
		return 2
	}
	var events []model.ObserverEvent
	if err := json.Unmarshal(data, &events); err != nil {
		fmt.Fprintf(stderr, "Error: parse events: %v\n", err)
		return 2
	}

	keyring := signing.NewKeyringFromSeed(seedFromString(keySeed))
	log := observer.New(func(agentID string) ([]byte, error) {
		return keyring.DeriveForAgent(agentID)
	})
	log.LoadEvents(events)

	if err := log.VerifyChain(); err != nil {
		return reportVerifyChain(stdout, stderr, jsonOut, false, err)
	}

	for i := range events {
		ok, err := log.VerifySignature(&events[i])
		if err != nil || !ok {
			return reportVerifyChain(stdout, stderr, jsonOut, false, fmt.Errorf("event at sequence %d: signature invalid", events[i].Sequence))
		}
	}

	return reportVerifyChain(stdout, stderr, jsonOut, true, nil)
}

func reportVerifyChain(stdout, stderr io.Writer, jsonOut, ok bool, err error) int {
	if jsonOut {
		result := map[string]any{"valid": ok}
		if err != nil {
			result["error"] = err.Error()
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(stdout, string(out))
	} else if ok {
		fmt.Fprintln(stdout, "chain verified")
	} else {
		fmt.Fprintf(stderr, "chain verification failed: %v\n", err)
	}
	if !ok {
		return 1
	}
	return 0
}
