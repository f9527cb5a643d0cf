package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/helmward/agentgov/pkg/authz"
	"github.com/helmward/agentgov/pkg/config"
	"github.com/helmward/agentgov/pkg/model"
)

type authorizeFile struct {
	Intent  model.Intent       `json:"intent"`
	Profile model.TrustProfile `json:"profile"`
}

// runAuthorizeCmd implements `helmgov authorize`: evaluates one intent
// and trust profile pair (read from a JSON file) against the
// Authorization Engine, outside of a running server. Useful for
// dry-running a policy change against a captured intent.
//
// Exit codes:
//
//	0 = permitted
//	1 = denied
//	2 = runtime or argument error
func runAuthorizeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("authorize", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		inputPath string
		jsonOut   bool
	)
	cmd.StringVar(&inputPath, "input", "", "Path to JSON file with {intent, profile} (REQUIRED)")
	cmd.BoolVar(&jsonOut, "json", false, "Output the full Decision as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if inputPath == "" {
		fmt.Fprintln(stderr, "Error: --input is required")
		return 2
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: read input: %v\n", err)
		return 2
	}
	var input authorizeFile
	if err := json.Unmarshal(data, &input); err != nil {
		fmt.Fprintf(stderr, "Error: parse input: %v\n", err)
		return 2
	}

	cfg := config.Load()
	hooks, err := config.LoadPolicySet(cfg.PolicySetPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load policy set: %v\n", err)
		return 2
	}

	engine, err := authz.NewEngine("policy-v1", hooks)
	if err != nil {
		fmt.Fprintf(stderr, "Error: init authz engine: %v\n", err)
		return 2
	}

	decision := engine.Authorize(context.Background(), input.Intent, input.Profile)

	if jsonOut {
		out, _ := json.MarshalIndent(decision, "", "  ")
		fmt.Fprintln(stdout, string(out))
	} else if decision.Permitted {
		fmt.Fprintf(stdout, "PERMITTED (band=%d)\n", decision.TrustBand)
	} else {
		fmt.Fprintf(stdout, "DENIED: %s\n", decision.DenialReason)
	}

	if !decision.Permitted {
		return 1
	}
	return 0
}
