package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
	"github.com/jmerrifield20/blocklog/internal/render"
)

var errEmptyInput = errors.New("input must not be empty")

var (
	demoUser       string
	demoText       string
	demoDifficulty int
	demoVerbose    bool
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run an in-process ledger: append one entry, mine, chart and validate",
	Long: `Demo runs a ledger inside the CLI, no node required. It asks for a name
and a log entry (or takes --user and --text), mines the next block, draws
the block-height chart, prints the chain as JSON and validates it.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoUser, "user", "", "Your name (prompted when empty)")
	demoCmd.Flags().StringVar(&demoText, "text", "", "Log entry (prompted when empty)")
	demoCmd.Flags().IntVar(&demoDifficulty, "difficulty", blockchain.DefaultDifficulty, "Leading zero hex digits required of a proof")
	demoCmd.Flags().BoolVar(&demoVerbose, "verbose", false, "Log engine events")
}

func runDemo(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	if demoVerbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
	}

	chain := blockchain.New(
		blockchain.WithConfig(blockchain.Config{Difficulty: demoDifficulty}),
		blockchain.WithObserver(blockchain.NewLogObserver(logger)),
	)

	user, err := promptIfEmpty(demoUser, "Enter your name")
	if err != nil {
		return err
	}
	text, err := promptIfEmpty(demoText, "Enter your log entry")
	if err != nil {
		return err
	}

	idx := chain.AppendEntry(user, text)
	pterm.Info.Printfln("Log entry will be added to block %d", idx)

	spinner, _ := pterm.DefaultSpinner.Start("Mining block...")
	block, err := chain.Mine(context.Background())
	if err != nil {
		spinner.Fail("Mining failed")
		return err
	}
	spinner.Success(fmt.Sprintf("Block %d sealed with proof %d", block.Index, block.Proof))

	blocks := chain.Blocks()
	if err := render.BarChart(os.Stdout, blocks); err != nil {
		return err
	}
	if err := render.ChainJSON(os.Stdout, blocks); err != nil {
		return err
	}

	if err := chain.Validate(); err != nil {
		pterm.Error.Printfln("Blockchain valid: false (%v)", err)
		return err
	}
	pterm.Success.Println("Blockchain valid: true")
	return nil
}

// promptIfEmpty returns value, or asks for one when it is blank.
func promptIfEmpty(value, prompt string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	answer, err := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).Show()
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%s: %w", prompt, errEmptyInput)
	}
	pterm.Println()
	return answer, nil
}
