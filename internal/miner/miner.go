// Package miner seals pending log entries in the background.
package miner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
)

// Config holds background mining configuration.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// ChainMiner is the slice of the ledger the miner needs.
type ChainMiner interface {
	Pending() []blockchain.LogEntry
	Mine(ctx context.Context) (blockchain.Block, error)
}

// Miner periodically mines a block whenever entries are pending.
type Miner struct {
	chain  ChainMiner
	cfg    Config
	logger *zap.Logger
}

// New creates a new Miner. A zero Interval defaults to 30 seconds and a zero
// Timeout to 2 minutes.
func New(chain ChainMiner, cfg Config, logger *zap.Logger) *Miner {
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Miner{chain: chain, cfg: cfg, logger: logger}
}

// Start runs the mining loop until quit is closed.
func (m *Miner) Start(quit <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
			go func() {
				select {
				case <-quit:
					cancel()
				case <-ctx.Done():
				}
			}()
			if _, _, err := m.MineOnce(ctx); err != nil {
				m.logger.Warn("miner: round failed", zap.Error(err))
			}
			cancel()
		case <-quit:
			return
		}
	}
}

// MineOnce mines one block if any entries are pending. It reports whether a
// block was sealed.
func (m *Miner) MineOnce(ctx context.Context) (blockchain.Block, bool, error) {
	pending := len(m.chain.Pending())
	if pending == 0 {
		return blockchain.Block{}, false, nil
	}

	block, err := m.chain.Mine(ctx)
	if err != nil {
		if errors.Is(err, blockchain.ErrProofSearchCancelled) {
			m.logger.Info("miner: proof search abandoned", zap.Int("pending", pending))
		}
		return blockchain.Block{}, false, err
	}

	m.logger.Info("miner: block sealed",
		zap.Int("index", block.Index),
		zap.Int("entries", len(block.Entries)),
	)
	return block, true, nil
}
