// Package main provides the entry point for the ldapc LDAP client CLI.
package main

import (
	"fmt"
	"os"

	"github.com/KilimcininKorOglu/ldapc/cmd/ldapc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
