package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srand/jolt/datasync/pkg/plugin"
	"github.com/srand/jolt/datasync/pkg/transformer"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List available plugins and transformers",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Readers")
		for _, name := range plugin.Default.Readers() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println()

		fmt.Println("Writers")
		for _, name := range plugin.Default.Writers() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println()

		fmt.Println("Transformers")
		for _, name := range transformer.Default.Names() {
			fmt.Printf("  %s\n", name)
		}
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
