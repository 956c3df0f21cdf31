// Package main provides the command line front-end of the evaluation dashboard.
//
// Sign in once, then work with the evaluation artifacts:
//
//	eval-dashboard login --email ada@example.com
//	eval-dashboard datasets list
//	eval-dashboard versions compare <source-version> <target-version>
//
// The configuration is read from eval-dashboard.yaml and EVAL_DASHBOARD_* environment
// variables, flags take precedence.
package main

import (
	"os"
)

// Build information, set with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
