package main

import (
	"fmt"

	"btreedb/internal/backup"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-path> <db-path>",
		Short: "Restore a database file (and its WAL, if backed up) from a prior backup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := backup.Restore(afero.NewOsFs(), args[0], args[1], nil)
			if err != nil {
				return err
			}
			fmt.Printf("restored %d bytes", info.DBBytes)
			if info.IncludesWAL {
				fmt.Printf(" + %d WAL bytes", info.WALBytes)
			}
			fmt.Println()
			return nil
		},
	}
	return cmd
}
