package main

import (
	"fmt"

	"btreedb/internal/backup"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	var includeWAL bool

	cmd := &cobra.Command{
		Use:   "backup <db-path> <dest-path>",
		Short: "Byte-copy a database file (and optionally its WAL) to dest-path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := backup.Backup(afero.NewOsFs(), args[0], args[1], includeWAL)
			if err != nil {
				return err
			}
			fmt.Printf("copied %d bytes", info.DBBytes)
			if info.IncludesWAL {
				fmt.Printf(" + %d WAL bytes", info.WALBytes)
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeWAL, "wal", true, "also copy the -wal sidecar if present")
	return cmd
}
