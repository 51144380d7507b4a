// Package render formats chains for terminals: a block-height bar chart, an
// indented JSON dump and a summary table.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/pterm/pterm"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
)

// Heights returns the index of every block, in chain order. The chart only
// ever looks at block heights.
func Heights(blocks []blockchain.Block) []int {
	heights := make([]int, len(blocks))
	for i, b := range blocks {
		heights[i] = b.Index
	}
	return heights
}

// BarChart writes one bar of height 1 per block, labelled with the block
// height.
func BarChart(w io.Writer, blocks []blockchain.Block) error {
	heights := Heights(blocks)
	if len(heights) == 0 {
		return nil
	}

	bars := make(pterm.Bars, 0, len(heights))
	for _, h := range heights {
		bars = append(bars, pterm.Bar{Label: strconv.Itoa(h), Value: 1})
	}

	chart, err := pterm.DefaultBarChart.WithBars(bars).WithHeight(4).Srender()
	if err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	_, err = io.WriteString(w, chart)
	return err
}

// ChainJSON writes blocks as indented JSON.
func ChainJSON(w io.Writer, blocks []blockchain.Block) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(blocks)
}

// Table writes a one-line summary per block.
func Table(w io.Writer, blocks []blockchain.Block) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTIMESTAMP\tENTRIES\tPROOF\tPREVIOUS HASH")
	for _, b := range blocks {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
			b.Index,
			b.Timestamp.Format("2006-01-02 15:04:05"),
			len(b.Entries),
			b.Proof,
			shortHash(b.PreviousHash),
		)
	}
	return tw.Flush()
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "…"
	}
	return h
}
