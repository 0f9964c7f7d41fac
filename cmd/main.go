/**
 * @description
 * This is the main entry point for the fund-transfer service. It builds the
 * `fundtransfer` command line, whose subcommands run the HTTP service, apply
 * schema migrations and seed demo account holders.
 *
 * @dependencies
 * - github.com/spf13/cobra: Command line parsing.
 * - github.com/joho/godotenv: For loading .env files during local development.
 */

package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
