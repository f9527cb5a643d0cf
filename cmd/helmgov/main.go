package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/lib/pq" // Postgres driver
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests.
var startServer = runServer

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		startServer(stdout, stderr)
		return 0
	}

	switch args[1] {
	case "serve", "server":
		startServer(stdout, stderr)
		return 0
	case "register":
		return runRegisterCmd(args[2:], stdout, stderr)
	case "authorize":
		return runAuthorizeCmd(args[2:], stdout, stderr)
	case "verify-chain":
		return runVerifyChainCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			startServer(stdout, stderr)
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "agentgov")
	fmt.Fprintln(w, "An authorization gate for autonomous agents.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  helmgov <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  serve         Run the authorization server (default)")
	fmt.Fprintln(w, "  register      Register an agent from a manifest file")
	fmt.Fprintln(w, "  authorize     Evaluate one intent and trust profile from a JSON file")
	fmt.Fprintln(w, "  verify-chain  Verify the observer log's hash chain")
	fmt.Fprintln(w, "  doctor        Check system health and configuration")
	fmt.Fprintln(w, "  help          Show this help")
	fmt.Fprintln(w, "")
}
