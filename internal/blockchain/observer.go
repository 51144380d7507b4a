package blockchain

import (
	"time"

	"go.uber.org/zap"
)

// EventType identifies what happened to the engine.
type EventType string

const (
	EventEntryAppended  EventType = "entry.appended"
	EventBlockSealed    EventType = "block.sealed"
	EventProofFound     EventType = "proof.found"
	EventChainValidated EventType = "chain.validated"
)

// Event describes a completed engine operation. Only the fields relevant to
// Type are set; Height and Pending always reflect the state right after the
// operation.
type Event struct {
	Type    EventType
	Time    time.Time
	Height  int
	Pending int

	Entry    *LogEntry // entry.appended
	Position int       // entry.appended: predicted block index

	Block *Block // block.sealed

	PreviousProof int64         // proof.found
	Proof         int64         // proof.found
	Attempts      int64         // proof.found
	Elapsed       time.Duration // proof.found

	Err error // chain.validated: nil when the chain is valid
}

// Observer receives engine events. Observe is called synchronously after the
// engine has released its lock, so it may call back into the engine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// LogObserver writes engine events to a zap logger.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver creates a LogObserver backed by logger.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Observe implements Observer.
func (o *LogObserver) Observe(ev Event) {
	switch ev.Type {
	case EventEntryAppended:
		o.logger.Debug("log entry added",
			zap.String("user", ev.Entry.User),
			zap.Int("block_index", ev.Position),
			zap.Int("pending", ev.Pending),
		)
	case EventBlockSealed:
		o.logger.Info("block sealed",
			zap.Int("index", ev.Block.Index),
			zap.Int("entries", len(ev.Block.Entries)),
			zap.Int64("proof", ev.Block.Proof),
			zap.String("previous_hash", ev.Block.PreviousHash),
		)
	case EventProofFound:
		o.logger.Info("proof of work found",
			zap.Int64("previous_proof", ev.PreviousProof),
			zap.Int64("proof", ev.Proof),
			zap.Int64("attempts", ev.Attempts),
			zap.Duration("elapsed", ev.Elapsed),
		)
	case EventChainValidated:
		if ev.Err != nil {
			fields := []zap.Field{zap.Int("height", ev.Height), zap.Error(ev.Err)}
			if verr, ok := AsValidationError(ev.Err); ok {
				fields = append(fields, zap.Int("index", verr.Index), zap.String("reason", string(verr.Reason)))
			}
			o.logger.Error("chain validation failed", fields...)
			return
		}
		o.logger.Info("chain is valid", zap.Int("height", ev.Height))
	}
}
