// Command pidrelations-admin holds the operator tools: minting service
// tokens, exporting the audit log and running the offline consistency
// validation against a database.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "token":
		err = handleToken(os.Args[2:])
	case "audit-export":
		err = handleAuditExport(os.Args[2:])
	case "validate":
		err = handleValidate(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	usage := `pidrelations-admin - operator tools for the PID relation registry

Usage:
  pidrelations-admin <command> [options]

Available Commands:
  token         Mint a service JWT for API access
  audit-export  Export the audit log as JSON or CSV
  validate      Run the consistency validation against a database
  help          Show this help message

Use "pidrelations-admin <command> --help" for command options.
`
	fmt.Print(usage)
}
