package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage background maintenance tasks",
	Long:  `List, trigger and inspect the server's background sweeps. Requires an authenticated admin session (tokend login).`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
