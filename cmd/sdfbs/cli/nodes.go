package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	sdfbslib "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/clients/library"
)

func newNodesCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List storage nodes and their health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				nodes, err := c.ListNodes(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATE\tCHUNKS\tBYTES\tLAST HEARTBEAT")
				for _, n := range nodes {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
						n.ID, n.State, n.ChunkCount, n.BytesStored, n.LastHeartbeat.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}

func newNodeCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Operator actions on a single storage node",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "fail <node-id>",
		Short: "Mark a node failed until it answers a probe again",
		Long:  `Mark a node failed so reads skip it and no new replicas land on it.

The override is temporary. The next successful liveness probe or heartbeat
returns the node to active, so a reachable node is back within one
registry.probe_interval. Use "node decommission" to take a node
out for good.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				if err := c.MarkNodeFailed(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s failed\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decommission <node-id>",
		Short: "Remove a node for good and re-replicate its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				result, err := c.Decommission(ctx, args[0])
				if printErr := printJSON(cmd.OutOrStdout(), result); printErr != nil {
					return printErr
				}
				return err
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "heartbeat <node-id>",
		Short: "Record a heartbeat for a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				return c.Heartbeat(ctx, args[0])
			})
		},
	})
	return cmd
}
