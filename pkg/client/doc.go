// Package client is the blocklog Go SDK.
//
// It talks to a blocklog node over its REST API: appending log entries,
// mining or sealing blocks, reading the chain and asking the node to
// validate it.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(os.Getenv("BLOCKLOG_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	idx, err := c.AppendEntry(ctx, "alice", "deployed v1.4.2")
//	block, err := c.Mine(ctx)
//
// Mine blocks until the node has found a proof of work; bound it with the
// context. A node that gives up on the search answers 503, reported as
// ErrMineCancelled.
//
// Read calls never need a token. Write calls need one when the node was
// started with a write secret; obtain it with 'blocklog token'.
package client
