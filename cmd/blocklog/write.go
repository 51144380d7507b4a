package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/blocklog/internal/identity"
	"github.com/jmerrifield20/blocklog/pkg/client"
)

// ── append ───────────────────────────────────────────────────────────────────

var appendUser string

var appendCmd = &cobra.Command{
	Use:   "append <log entry>",
	Short: "Append a log entry to the node's pending buffer",
	Long: `Append buffers an attributed log entry on the node. It is sealed into the
next block mined or sealed:

  blocklog append --user alice "deployed v1.4.2"

With a writer token --user may be omitted; the node uses the token subject.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		idx, err := c.AppendEntry(context.Background(), appendUser, args[0])
		if err != nil {
			return fmt.Errorf("append: %w", err)
		}
		fmt.Printf("Log entry will be added to block %d\n", idx)
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendUser, "user", "", "Author of the entry")
}

// ── mine ─────────────────────────────────────────────────────────────────────

var mineTimeout time.Duration

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Have the node find a proof of work and seal the pending entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), mineTimeout)
		defer cancel()

		spinner, _ := pterm.DefaultSpinner.Start("Searching for a proof of work...")
		block, err := c.Mine(ctx)
		if err != nil {
			spinner.Fail("Mining failed")
			if errors.Is(err, client.ErrMineCancelled) {
				return fmt.Errorf("the node gave up before finding a proof; try again or raise mining.timeout")
			}
			return fmt.Errorf("mine: %w", err)
		}
		spinner.Success(fmt.Sprintf("Sealed block %d (proof %d, %d entries)", block.Index, block.Proof, len(block.Entries)))
		return nil
	},
}

func init() {
	mineCmd.Flags().DurationVar(&mineTimeout, "timeout", 5*time.Minute, "How long to wait for the node")
}

// ── seal ─────────────────────────────────────────────────────────────────────

var sealProof int64

var sealCmd = &cobra.Command{
	Use:   "seal --proof <n>",
	Short: "Seal the pending entries with a proof you supply",
	Long: `Seal closes a block with the given proof without checking it. A wrong
proof is accepted and later reported by 'blocklog validate'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("proof") {
			return errors.New("--proof is required")
		}
		c, err := newClient()
		if err != nil {
			return err
		}

		block, err := c.SealBlock(context.Background(), sealProof)
		if err != nil {
			return fmt.Errorf("seal: %w", err)
		}
		fmt.Printf("Sealed block %d with proof %d\n", block.Index, block.Proof)
		return nil
	},
}

func init() {
	sealCmd.Flags().Int64Var(&sealProof, "proof", 0, "Proof to seal the block with")
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSecret string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <user>",
	Short: "Issue a writer token signed with the node's write secret",
	Long: `Token signs a writer token for user with the node's write secret, read
from --secret, the write_secret config key or BLOCKLOG_WRITE_SECRET.

  export BLOCKLOG_TOKEN=$(blocklog token alice --secret "$SECRET")`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = viper.GetString("write_secret")
		}
		issuer, err := identity.NewTokenIssuer(secret, tokenTTL)
		if err != nil {
			return err
		}

		tok, err := issuer.Issue(args[0])
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Node write secret")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
