package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halroad/progressbot/internal/intake"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the progressbot version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "progressbot version %s\n", version)
	},
}

// gencodeCmd mints codes for clients added to the register by hand
// rather than through the intake form.
var gencodeCmd = &cobra.Command{
	Use:   "gencode",
	Short: "Generate a client code and auth code pair",
	Run: func(cmd *cobra.Command, args []string) {
		printStep("Generating codes")
		printStatus("Client code", "%s", intake.NewClientCode())
		printStatus("Auth code", "%s", intake.NewAuthCode())
		printSuccess("Add both to the client's row in the register")
	},
}
