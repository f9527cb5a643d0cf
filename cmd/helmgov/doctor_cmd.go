package main

import (
	"database/sql"
	"fmt"
	"io"
	"runtime"

	"github.com/helmward/agentgov/pkg/config"
)

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

// runDoctorCmd implements `helmgov doctor` — a system health check that
// never requires a running server.
//
// Exit codes:
//
//	0 = all checks pass
//	1 = one or more checks failed
func runDoctorCmd(stdout, stderr io.Writer) int {
	var results []checkResult
	allOK := true

	results = append(results, checkResult{
		Name:   "go_runtime",
		Status: "ok",
		Detail: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	})

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		results = append(results, checkResult{Name: "config", Status: "warn", Detail: err.Error()})
	} else {
		results = append(results, checkResult{Name: "config", Status: "ok", Detail: "valid"})
	}

	if cfg.DatabaseURL == "" || cfg.ShadowMode {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			results = append(results, checkResult{Name: "sqlite", Status: "fail", Detail: err.Error()})
			allOK = false
		} else {
			defer db.Close()
			if err := db.Ping(); err != nil {
				results = append(results, checkResult{Name: "sqlite", Status: "fail", Detail: err.Error()})
				allOK = false
			} else {
				results = append(results, checkResult{Name: "sqlite", Status: "ok", Detail: cfg.SQLitePath})
			}
		}
	} else {
		results = append(results, checkResult{Name: "database_url", Status: "ok", Detail: "set, postgres mode"})
	}

	if cfg.SigningKeySeed == "" {
		results = append(results, checkResult{Name: "signing_key_seed", Status: "warn", Detail: "SIGNING_KEY_SEED not set"})
	} else {
		results = append(results, checkResult{Name: "signing_key_seed", Status: "ok", Detail: "set"})
	}

	for _, r := range results {
		fmt.Fprintf(stdout, "  [%s] %-20s %s\n", statusGlyph(r.Status), r.Name, r.Detail)
	}

	if !allOK {
		return 1
	}
	return 0
}

func statusGlyph(status string) string {
	switch status {
	case "ok":
		return "OK"
	case "warn":
		return "WARN"
	default:
		return "FAIL"
	}
}
