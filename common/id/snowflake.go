package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID. Each binary uses
// its own node ID (server 1, worker 2, replay 3).
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new time-ordered int64 ID. Falls back to node 0 when Init
// was never called, which keeps tests and one-off tools working.
func New() int64 {
	once.Do(func() {
		node, _ = snowflake.NewNode(0)
	})
	return node.Generate().Int64()
}
