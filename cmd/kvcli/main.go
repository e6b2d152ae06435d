// cmd/kvcli is the CLI client, built with Cobra.
//
// Usage:
//
//	kvcli set mykey '"hello world"'     --node localhost:9090
//	kvcli get mykey                     --node localhost:9090
//	kvcli delete mykey                  --node localhost:9090
//	kvcli bulk-set a=1 b=2              --node localhost:9090
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MariamHany01/key-valueDB/internal/client"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	nodeAddr string
	timeout  time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "kvcli",
		Short: "CLI client for the key-value cluster",
	}

	root.PersistentFlags().StringVarP(&nodeAddr, "node", "n",
		"localhost:9090", "node address (host:port)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"request timeout")

	root.AddCommand(setCmd(), getCmd(), deleteCmd(), bulkSetCmd())

	if err := root.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

// ─── set ────────────────────────────────────────────────────────────────────

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <json-value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(nodeAddr, timeout)
			defer c.Close()

			if err := c.Set(context.Background(), args[0], json.RawMessage(args[1])); err != nil {
				return reportWriteErr(err)
			}
			color.Green("OK")
			return nil
		},
	}
}

// ─── get ────────────────────────────────────────────────────────────────────

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(nodeAddr, timeout)
			defer c.Close()

			v, err := c.Get(context.Background(), args[0])
			if err == client.ErrNotFound {
				color.Yellow("key %q not found", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(string(v))
			return nil
		},
	}
}

// ─── delete ─────────────────────────────────────────────────────────────────

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(nodeAddr, timeout)
			defer c.Close()

			deleted, err := c.Delete(context.Background(), args[0])
			if err != nil {
				return reportWriteErr(err)
			}
			if deleted {
				color.Green("deleted %q", args[0])
			} else {
				color.Yellow("key %q did not exist", args[0])
			}
			return nil
		},
	}
}

// ─── bulk-set ───────────────────────────────────────────────────────────────

func bulkSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-set <key=json-value>...",
		Short: "Atomically set several keys in one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]client.BulkItem, 0, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid item %q, expected key=value", arg)
				}
				items = append(items, client.BulkItem{Key: k, Value: json.RawMessage(v)})
			}

			c := client.New(nodeAddr, timeout)
			defer c.Close()

			if err := c.BulkSet(context.Background(), items); err != nil {
				return reportWriteErr(err)
			}
			color.Green("OK (%d items)", len(items))
			return nil
		},
	}
}

// ─── helpers ────────────────────────────────────────────────────────────────

func reportWriteErr(err error) error {
	if e, ok := err.(*client.NotPrimaryError); ok {
		return fmt.Errorf("not primary: %s", e.Error())
	}
	return err
}
