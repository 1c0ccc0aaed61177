package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"btreedb"
	"btreedb/internal/backup"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newReplCmd() *cobra.Command {
	var createIfMissing bool

	cmd := &cobra.Command{
		Use:   "repl <db-path>",
		Short: "Open a database and start an interactive shell",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(args[0], createIfMissing)
		},
	}
	cmd.Flags().BoolVar(&createIfMissing, "create", true, "create the database if it does not exist")
	return cmd
}

func runRepl(path string, createIfMissing bool) error {
	db, err := btreedb.Open(path, btreedb.Options{CreateIfMissing: createIfMissing})
	if err != nil {
		return fmt.Errorf("btreedb-repl: open %q: %w", path, err)
	}
	defer db.Close()

	rl, err := readline.New("btreedb> ")
	if err != nil {
		return fmt.Errorf("btreedb-repl: init readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("btreedb REPL. Commands: set, get, delete, scan, .stats, .dump, .backup, .restore, .exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Println("bye")
			return nil
		}
		if err != nil {
			return fmt.Errorf("btreedb-repl: read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if line == ".exit" {
			fmt.Println("bye")
			return nil
		}

		if err := dispatch(db, path, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func dispatch(db *btreedb.DB, path, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "set":
		if len(fields) < 3 {
			return fmt.Errorf("usage: set <key> <value...>")
		}
		value := strings.Join(fields[2:], " ")
		if err := db.Insert(fields[1], value); err != nil {
			return err
		}
		fmt.Println("OK")
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		value, ok, err := db.Get(fields[1])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(nil)")
			return nil
		}
		fmt.Println(value)
	case "delete":
		if len(fields) != 2 {
			return fmt.Errorf("usage: delete <key>")
		}
		removed, err := db.Delete(fields[1])
		if err != nil {
			return err
		}
		fmt.Println(removed)
	case "scan":
		var start, end *string
		if len(fields) > 1 {
			start = &fields[1]
		}
		if len(fields) > 2 {
			end = &fields[2]
		}
		return printScan(db, start, end)
	case ".stats":
		printStats(db, path)
	case ".dump":
		return printScan(db, nil, nil)
	case ".backup":
		if len(fields) != 2 {
			return fmt.Errorf("usage: .backup <dest>")
		}
		info, err := backup.Backup(afero.NewOsFs(), path, fields[1], true)
		if err != nil {
			return err
		}
		fmt.Printf("backed up %d bytes (wal: %v)\n", info.DBBytes, info.IncludesWAL)
	case ".restore":
		if len(fields) != 2 {
			return fmt.Errorf("usage: .restore <src>")
		}
		info, err := backup.Restore(afero.NewOsFs(), fields[1], path, nil)
		if err != nil {
			return err
		}
		fmt.Printf("restored %d bytes (wal: %v)\n", info.DBBytes, info.IncludesWAL)
	default:
		return fmt.Errorf("unknown command: %s", fields[0])
	}
	return nil
}

func printScan(db *btreedb.DB, start, end *string) error {
	cur, err := db.Scan(start, end)
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
}

func printStats(db *btreedb.DB, path string) {
	count := 0
	cur, err := db.Scan(nil, nil)
	if err == nil {
		for cur.Valid() {
			count++
			if cur.Next() != nil {
				break
			}
		}
	}
	fmt.Printf("session: %s\n", sessionID)
	fmt.Printf("path: %s\n", path)
	fmt.Printf("keys: %d\n", count)
	if verbose {
		fmt.Println("(verbose) page size: 4096 bytes")
	}
}
