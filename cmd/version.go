package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SisyphusSQ/mongo-top-tool/vars"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version of " + vars.AppName,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", vars.AppName, vars.Version)
	},
}

func initVersion() {
	rootCmd.AddCommand(versionCmd)
}
