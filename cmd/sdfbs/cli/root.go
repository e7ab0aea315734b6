package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string
	Commit  string
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	server     string
	timeout    time.Duration
}

func NewRootCommand(info VersionInfo) *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "sdfbs",
		Short: "Chunked, replicated file backup",
		Long: `sdfbs splits files into chunks, stores each chunk on several storage
nodes and rebuilds files from whatever replicas survive node failures.

Run 'sdfbs serve' to start a storage server, then use the other commands
to upload, download and inspect files on it.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().StringVar(&g.server, "server", "127.0.0.1:7400", "gRPC address of the storage server")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)

	cmd.AddCommand(
		newVersionCommand(info),
		newServeCommand(g),
		newConfigCommand(),
		newUploadCommand(g),
		newDownloadCommand(g),
		newStatusCommand(g),
		newRepairCommand(g),
		newFilesCommand(g),
		newNodesCommand(g),
		newNodeCommand(g),
	)
	return cmd
}

func newVersionCommand(info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sdfbs %s (%s)\n", info.Version, info.Commit)
		},
	}
}
