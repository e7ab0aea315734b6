package main

import (
	"fmt"
	"os"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/cmd/sdfbs/cli"
)

var (
	version = "0.1.0-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
