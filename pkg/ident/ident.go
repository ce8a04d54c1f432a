// Package ident generates the identifiers handed out by Courier.
package ident

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Generator produces message, payment and draft identifiers.  Message and payment IDs are
// snowflakes, so they sort by creation time; draft IDs are UUIDs.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator returns a Generator for the given snowflake node number (0-1023).
func NewGenerator(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &Generator{node: n}, nil
}

// MessageID returns a new message ID.
func (g *Generator) MessageID() string {
	return g.node.Generate().String()
}

// PaymentID returns a new payment transaction ID.
func (g *Generator) PaymentID() string {
	return "pay_" + g.node.Generate().Base58()
}

// DraftID returns a new draft ID.
func (g *Generator) DraftID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
