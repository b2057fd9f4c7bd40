// Package ident generates the client-side message identifiers. Every locally
// originated message is labelled with one of these before the server assigns
// a canonical id; the cache keys message rows by it.
package ident

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Epoch is the custom snowflake epoch in Unix milliseconds, shared with the
// server. Ids embed milliseconds elapsed since this point.
const Epoch int64 = 1731492000000

const maxMachineID = 1<<10 - 1

var epochOnce sync.Once

// Node produces strictly increasing 64-bit ids for one process. Layout:
// 41 timestamp bits, 10 machine bits, 12 sequence bits. The sequence wraps
// at 4096 within one millisecond, busy-waiting for the clock to advance.
type Node struct {
	node *snowflake.Node
}

// New creates an id node. machineID outside [0, 1023] (including the -1
// config default) picks a random one, which is how the browser client
// behaves per process.
func New(machineID int64, logger *zap.Logger) (*Node, error) {
	epochOnce.Do(func() {
		snowflake.Epoch = Epoch
	})

	if machineID < 0 || machineID > maxMachineID {
		machineID = rand.Int63n(maxMachineID + 1)
		logger.Info("using random machine id", zap.Int64("machine_id", machineID))
	}

	node, err := snowflake.NewNode(machineID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &Node{node: node}, nil
}

// Generate returns the next id.
func (n *Node) Generate() int64 {
	return n.node.Generate().Int64()
}

// GenerateString returns the next id in decimal string form, for surfaces
// where 64-bit integers lose precision.
func (n *Node) GenerateString() string {
	return n.node.Generate().String()
}
