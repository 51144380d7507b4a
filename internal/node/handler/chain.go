package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
	"github.com/jmerrifield20/blocklog/internal/identity"
)

// AppendEntryRequest is the body of POST /entries.
type AppendEntryRequest struct {
	User     string `json:"user"`
	LogEntry string `json:"log_entry"`
}

// SealBlockRequest is the body of POST /blocks.
type SealBlockRequest struct {
	Proof *int64 `json:"proof"`
}

// ChainHandler exposes the ledger over HTTP.
type ChainHandler struct {
	ledger      blockchain.Ledger
	tokens      *identity.TokenIssuer // nil = open writes
	mineTimeout time.Duration
	logger      *zap.Logger
}

// NewChainHandler creates a new ChainHandler. tokens may be nil to leave the
// write routes unauthenticated; mineTimeout bounds POST /mine (0 = 2 minutes).
func NewChainHandler(ledger blockchain.Ledger, tokens *identity.TokenIssuer, mineTimeout time.Duration, logger *zap.Logger) *ChainHandler {
	if mineTimeout == 0 {
		mineTimeout = 2 * time.Minute
	}
	return &ChainHandler{ledger: ledger, tokens: tokens, mineTimeout: mineTimeout, logger: logger}
}

// Register mounts the chain routes on the given router group.
func (h *ChainHandler) Register(rg *gin.RouterGroup) {
	chain := rg.Group("/chain")
	{
		chain.GET("", h.GetChain)
		chain.GET("/validate", h.Validate)
		chain.GET("/blocks/:idx", h.GetBlock)
	}

	write := identity.RequireToken(h.tokens)
	rg.GET("/entries/pending", h.Pending)
	rg.POST("/entries", write, h.AppendEntry)
	rg.POST("/mine", write, h.Mine)
	rg.POST("/blocks", write, h.SealBlock)
}

// GetChain handles GET /chain: returns every block, the length and the root hash.
func (h *ChainHandler) GetChain(c *gin.Context) {
	blocks := h.ledger.Blocks()
	c.JSON(http.StatusOK, gin.H{
		"length": len(blocks),
		"root":   h.ledger.Root(),
		"chain":  blocks,
	})
}

// GetBlock handles GET /chain/blocks/:idx: returns a single block by 1-based index.
func (h *ChainHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a positive integer"})
		return
	}

	block, err := h.ledger.Block(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}

	c.JSON(http.StatusOK, block)
}

// Validate handles GET /chain/validate: walks the full chain and reports integrity.
func (h *ChainHandler) Validate(c *gin.Context) {
	if err := h.ledger.Validate(); err != nil {
		resp := gin.H{"valid": false, "error": err.Error()}
		if verr, ok := blockchain.AsValidationError(err); ok {
			resp["index"] = verr.Index
			resp["reason"] = verr.Reason
		}
		h.logger.Warn("chain integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true, "length": h.ledger.Len()})
}

// Pending handles GET /entries/pending: lists entries waiting for the next block.
func (h *ChainHandler) Pending(c *gin.Context) {
	entries := h.ledger.Pending()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

// AppendEntry handles POST /entries: buffers a log entry.
//
// With a writer token the user defaults to the token subject, and a different
// explicit user is rejected.
func (h *ChainHandler) AppendEntry(c *gin.Context) {
	var req AppendEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if claims := identity.ClaimsFromCtx(c); claims != nil {
		switch {
		case req.User == "":
			req.User = claims.User()
		case req.User != claims.User():
			c.JSON(http.StatusForbidden, gin.H{"error": "token subject does not match user"})
			return
		}
	}

	idx := h.ledger.AppendEntry(req.User, req.LogEntry)
	c.JSON(http.StatusCreated, gin.H{
		"message":     "log entry will be added to block " + strconv.Itoa(idx),
		"block_index": idx,
	})
}

// Mine handles POST /mine: finds a proof for the tip and seals the pending entries.
func (h *ChainHandler) Mine(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.mineTimeout)
	defer cancel()

	block, err := h.ledger.Mine(ctx)
	if err != nil {
		if errors.Is(err, blockchain.ErrProofSearchCancelled) {
			h.logger.Warn("proof search abandoned", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "proof search cancelled before a proof was found"})
			return
		}
		h.logger.Error("mine", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mine block"})
		return
	}

	c.JSON(http.StatusCreated, block)
}

// SealBlock handles POST /blocks: seals the pending entries with a
// caller-supplied proof. The proof is not checked; GET /chain/validate is.
func (h *ChainHandler) SealBlock(c *gin.Context) {
	var req SealBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Proof == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proof is required"})
		return
	}

	c.JSON(http.StatusCreated, h.ledger.SealBlock(*req.Proof))
}
