package main

import (
	"fmt"

	"btreedb"

	"github.com/spf13/cobra"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <db-path>",
		Short: "Print every key-value pair in a database file, in key order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := btreedb.Open(args[0], btreedb.Options{})
			if err != nil {
				return err
			}
			defer db.Close()

			cur, err := db.Scan(nil, nil)
			if err != nil {
				return err
			}
			for cur.Valid() {
				fmt.Printf("%s = %s\n", cur.Key(), cur.Value())
				if err := cur.Next(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}
