package main

import (
	"fmt"
	"runtime"

	"github.com/fentz26/autopilot/internal/controlplane"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of Autopilot",
	// Version must work without a valid config.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run:              runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("Autopilot version %s\n", controlplane.Version)
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}
