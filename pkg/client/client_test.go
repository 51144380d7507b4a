package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
	"github.com/jmerrifield20/blocklog/internal/identity"
	"github.com/jmerrifield20/blocklog/internal/node/handler"
	"github.com/jmerrifield20/blocklog/pkg/client"
)

// ── Test node ───────────────────────────────────────────────────────────

func startNode(t *testing.T, tokens *identity.TokenIssuer, cfg blockchain.Config) (*httptest.Server, *blockchain.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := blockchain.New(blockchain.WithConfig(cfg))

	r := gin.New()
	h := handler.NewChainHandler(engine, tokens, 100*time.Millisecond, zap.NewNop())
	h.Register(r.Group("/api/v1"))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, engine
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestNew_emptyBaseURL(t *testing.T) {
	if _, err := client.New(""); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestClient_appendMineValidate(t *testing.T) {
	srv, _ := startNode(t, nil, blockchain.Config{Difficulty: 2})
	c := client.MustNew(srv.URL + "/")
	ctx := context.Background()

	idx, err := c.AppendEntry(ctx, "alice", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if idx != 2 {
		t.Errorf("block index: got %d, want 2", idx)
	}

	pending, err := c.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].User != "alice" {
		t.Errorf("unexpected pending: %+v", pending)
	}

	block, err := c.Mine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if block.Index != 2 || block.Proof != 226 || block.Entries[0].Text != "hello" {
		t.Errorf("unexpected mined block: %+v", block)
	}

	chain, err := c.Chain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if chain.Length != 2 || len(chain.Blocks) != 2 || chain.Root == "" {
		t.Errorf("unexpected chain: %+v", chain)
	}

	result, err := c.Validate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Errorf("expected a valid chain, got %+v", result)
	}
}

func TestClient_sealBadProofFailsValidation(t *testing.T) {
	srv, _ := startNode(t, nil, blockchain.Config{Difficulty: 2})
	c := client.MustNew(srv.URL)
	ctx := context.Background()

	if _, err := c.SealBlock(ctx, 227); err != nil {
		t.Fatal(err)
	}

	result, err := c.Validate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid || result.Index != 2 || result.Reason != "proof_of_work" {
		t.Errorf("unexpected verdict: %+v", result)
	}
}

func TestClient_blockNotFound(t *testing.T) {
	srv, _ := startNode(t, nil, blockchain.Config{Difficulty: 2})
	c := client.MustNew(srv.URL)

	genesis, err := c.Block(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if genesis.PreviousHash != "1" {
		t.Errorf("unexpected genesis: %+v", genesis)
	}

	_, err = c.Block(context.Background(), 9)
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestClient_mineCancelled(t *testing.T) {
	srv, _ := startNode(t, nil, blockchain.Config{Difficulty: 64})
	c := client.MustNew(srv.URL)

	_, err := c.Mine(context.Background())
	if !errors.Is(err, client.ErrMineCancelled) {
		t.Errorf("got %v, want ErrMineCancelled", err)
	}
}

func TestClient_bearerToken(t *testing.T) {
	tokens, err := identity.NewTokenIssuer("s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	srv, engine := startNode(t, tokens, blockchain.Config{Difficulty: 2})
	ctx := context.Background()

	if _, err := client.MustNew(srv.URL).AppendEntry(ctx, "alice", "x"); err == nil {
		t.Fatal("expected unauthorized error without a token")
	}

	tok, err := tokens.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	c := client.MustNew(srv.URL, client.WithBearerToken(tok))
	if _, err := c.AppendEntry(ctx, "", "hello"); err != nil {
		t.Fatal(err)
	}
	if p := engine.Pending(); len(p) != 1 || p[0].User != "alice" {
		t.Errorf("unexpected pending: %+v", p)
	}
}

func TestWithHTTPClient(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.Header.Get("Accept") == "application/json"
		w.Write([]byte(`{"count":0,"entries":[]}`))
	}))
	defer srv.Close()

	c, err := client.New(srv.URL, client.WithHTTPClient(&http.Client{Timeout: time.Second}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Pending(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("expected JSON request through the custom client")
	}

	if _, err := client.New(srv.URL, client.WithHTTPClient(nil)); err == nil {
		t.Error("expected error for nil http client")
	}
}
