package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
	"github.com/jmerrifield20/blocklog/internal/render"
	"github.com/jmerrifield20/blocklog/pkg/client"
)

// ── chain ────────────────────────────────────────────────────────────────────

var (
	chainFormat string
	chainChart  bool
	chainBlock  int
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Show the node's chain",
	Long: `Chain prints every sealed block. Use --block to show a single block by
its 1-based height and --chart for a block-height bar chart:

  blocklog chain --format json
  blocklog chain --block 2
  blocklog chain --chart`,
	RunE: runChain,
}

func init() {
	chainCmd.Flags().StringVar(&chainFormat, "format", "text", "Output format: text or json")
	chainCmd.Flags().BoolVar(&chainChart, "chart", false, "Draw a block-height bar chart")
	chainCmd.Flags().IntVar(&chainBlock, "block", 0, "Show only the block at this height")
}

func runChain(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var blocks []blockchain.Block
	var root string
	if chainBlock > 0 {
		b, err := c.Block(ctx, chainBlock)
		if err != nil {
			return fmt.Errorf("fetch block %d: %w", chainBlock, err)
		}
		blocks = toBlocks([]client.Block{*b})
	} else {
		chain, err := c.Chain(ctx)
		if err != nil {
			return fmt.Errorf("fetch chain: %w", err)
		}
		blocks = toBlocks(chain.Blocks)
		root = chain.Root
	}

	switch chainFormat {
	case "json":
		if err := render.ChainJSON(os.Stdout, blocks); err != nil {
			return err
		}
	default:
		if err := render.Table(os.Stdout, blocks); err != nil {
			return err
		}
		if root != "" {
			fmt.Printf("\nRoot: %s\n", root)
		}
	}

	if chainChart {
		fmt.Println()
		return render.BarChart(os.Stdout, blocks)
	}
	return nil
}

// ── validate ─────────────────────────────────────────────────────────────────

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Ask the node to validate its chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		result, err := c.Validate(context.Background())
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		if !result.Valid {
			pterm.Error.Printfln("Blockchain valid: false (block %d, %s)", result.Index, result.Reason)
			return fmt.Errorf("chain invalid: %s", result.Error)
		}
		pterm.Success.Println("Blockchain valid: true")
		return nil
	},
}

// ── pending ──────────────────────────────────────────────────────────────────

var pendingFormat string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List entries waiting for the next block",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		entries, err := c.Pending(context.Background())
		if err != nil {
			return fmt.Errorf("fetch pending: %w", err)
		}

		if pendingFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No pending entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-12s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.User, e.Text)
		}
		return nil
	},
}

func init() {
	pendingCmd.Flags().StringVar(&pendingFormat, "format", "text", "Output format: text or json")
}

// toBlocks converts SDK blocks into engine blocks for rendering.
func toBlocks(in []client.Block) []blockchain.Block {
	out := make([]blockchain.Block, len(in))
	for i, b := range in {
		entries := make([]blockchain.LogEntry, len(b.Entries))
		for j, e := range b.Entries {
			entries[j] = blockchain.LogEntry{User: e.User, Text: e.Text, Timestamp: e.Timestamp}
		}
		out[i] = blockchain.Block{
			Index:        b.Index,
			Timestamp:    b.Timestamp,
			Entries:      entries,
			Proof:        b.Proof,
			PreviousHash: b.PreviousHash,
		}
	}
	return out
}
