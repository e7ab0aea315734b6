package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/config"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/servers/node"
)

func newServeCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start a storage server",
		Long: `Start a storage server with every storage node listed in the config.

The server answers gRPC requests on server.grpc_listen and exposes
/healthz, /metrics and admin routes on server.admin_listen. It runs until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			n, err := node.Build(cfg)
			if err != nil {
				return fmt.Errorf("failed to build server: %w", err)
			}
			return n.Run()
		},
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management utilities",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Write the default configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output")
			overwrite, _ := cmd.Flags().GetBool("overwrite")

			filename := filepath.Join(outputDir, "config.yaml")
			written, err := config.Generate(filename, overwrite)
			if err != nil {
				return err
			}
			if !written {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipping %s (file exists, use --overwrite to replace)\n", filename)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %s\n", filename)
			return nil
		},
	}
	generate.Flags().String("output", ".", "output directory for the configuration file")
	generate.Flags().Bool("overwrite", false, "overwrite an existing file")

	cmd.AddCommand(generate)
	return cmd
}
