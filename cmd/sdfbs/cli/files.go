package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sdfbslib "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/clients/library"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

func newUploadCommand(g *globals) *cobra.Command {
	var replicas int
	var name string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				res, err := c.Upload(ctx, name, data, replicas)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %s as %s (%d bytes, %d chunks, %d/%d replicas)\n",
					res.Filename, res.FileID, res.Size, res.ChunkCount, res.AchievedReplication, res.ReplicationFactor)
				if len(res.UnderReplicatedChunks) > 0 {
					fmt.Fprintf(out, "Under-replicated: %s\n", strings.Join(res.UnderReplicatedChunks, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&replicas, "replicas", "r", 2, "replicas per chunk")
	cmd.Flags().StringVar(&name, "name", "", "stored filename (default is the base name of path)")
	return cmd
}

func newDownloadCommand(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download and reassemble a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				data, err := c.Download(ctx, args[0])
				var missing *storage_errors.MissingChunkError
				if errors.As(err, &missing) {
					return fmt.Errorf("%w\nrun 'sdfbs repair %s' once the failed nodes are back", err, args[0])
				}
				if err != nil {
					return err
				}

				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(data), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newStatusCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <file-id>",
		Short: "Show replica health of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				status, err := c.Status(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}

func newRepairCommand(g *globals) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "repair [file-id]",
		Short: "Restore the replication factor of a file, or of every file with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				if all {
					reports, err := c.RepairAll(ctx)
					if printErr := printJSON(cmd.OutOrStdout(), reports); printErr != nil {
						return printErr
					}
					return err
				}
				report, err := c.Repair(ctx, args[0])
				if printErr := printJSON(cmd.OutOrStdout(), report); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "repair every file")
	return cmd
}

func newFilesCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				files, err := c.ListFiles(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSIZE\tCHUNKS\tREPLICAS\tRECONSTRUCTABLE\tFAILED NODES")
				for _, f := range files {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%d/%d\t%t\t%s\n",
						f.FileID, f.Filename, f.Size,
						f.AvailableChunks, f.TotalChunks,
						f.AchievedReplication, f.ReplicationFactor,
						f.Reconstructable, strings.Join(f.FailedNodes, ","))
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <file-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a file and its replicas",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(g, func(ctx context.Context, c *sdfbslib.Client) error {
				if err := c.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}
