package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/helmward/agentgov/pkg/config"
	"github.com/helmward/agentgov/pkg/model"
)

// runRegisterCmd implements `helmgov register`: reads a manifest JSON
// file and creates an agent row in the draft pipeline stage.
//
// Exit codes:
//
//	0 = registered
//	2 = runtime or argument error
func runRegisterCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("register", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		agentID   string
		name      string
		ownerID   string
		manifestP string
	)
	cmd.StringVar(&agentID, "agent-id", "", "Agent ID (REQUIRED)")
	cmd.StringVar(&name, "name", "", "Agent display name (REQUIRED)")
	cmd.StringVar(&ownerID, "owner", "", "Owning team or user (REQUIRED)")
	cmd.StringVar(&manifestP, "manifest", "", "Path to manifest JSON file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if agentID == "" || name == "" || ownerID == "" || manifestP == "" {
		fmt.Fprintln(stderr, "Error: --agent-id, --name, --owner, and --manifest are required")
		return 2
	}

	data, err := os.ReadFile(manifestP)
	if err != nil {
		fmt.Fprintf(stderr, "Error: read manifest: %v\n", err)
		return 2
	}
	var manifest model.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		fmt.Fprintf(stderr, "Error: parse manifest: %v\n", err)
		return 2
	}

	cfg := config.Load()
	ctx := context.Background()
	db, store, err := openRegisterStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: open store: %v\n", err)
		return 2
	}
	defer db.Close()

	now := time.Now().UTC()
	agent := model.Agent{
		AgentID:       agentID,
		Name:          name,
		OwnerID:       ownerID,
		Manifest:      manifest,
		PipelineStage: model.StageDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := store.CreateAgent(ctx, agent); err != nil {
		fmt.Fprintf(stderr, "Error: create agent: %v\n", err)
		return 2
	}

	fmt.Fprintf(stdout, "registered agent %s (%s)\n", agentID, name)
	return 0
}

func openRegisterStore(ctx context.Context, cfg *config.Config) (*sql.DB, agentStore, error) {
	liteMode := cfg.DatabaseURL == "" || cfg.ShadowMode
	db, err := openDB(ctx, cfg, liteMode)
	if err != nil {
		return nil, nil, err
	}
	store, err := openAgentStore(ctx, db, liteMode)
	if err != nil {
		return nil, nil, err
	}
	return db, store, nil
}
