package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	sdfbslib "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/clients/library"
	grpccomm "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication/grpc"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
)

// withClient runs fn with a client bound to the --server address and a
// context bounded by --timeout.
func withClient(g *globals, fn func(ctx context.Context, c *sdfbslib.Client) error) error {
	comm := grpccomm.NewGRPCCommunicator("", log_service.NoOpLogService{})
	defer comm.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	return fn(ctx, sdfbslib.NewClient(g.server, comm))
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
