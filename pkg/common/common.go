package common

import (
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	NA       = "N/A"
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	snowflakeNode *snowflake.Node
	snowflakeOnce sync.Once
)

// UUIDint64 returns a cluster-unique int64 identifier.
// The snowflake node id can be pinned with ORDERDESK_NODE_ID when
// several instances share one database.
func UUIDint64() int64 {
	snowflakeOnce.Do(func() {
		nodeID := int64(1)
		if v := os.Getenv("ORDERDESK_NODE_ID"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 && n <= 1023 {
				nodeID = n
			}
		}
		node, err := snowflake.NewNode(nodeID)
		if err != nil {
			// last resort: random node, still unique within the process
			node, _ = snowflake.NewNode(rand.Int63n(1024))
		}
		snowflakeNode = node
	})
	return snowflakeNode.Generate().Int64()
}

// IfEmptyStr returns defval when src is empty.
func IfEmptyStr(src string, defval string) string {
	if src == "" {
		return defval
	}
	return src
}

// FmtDatetime formats a time with the layout used across the admin API
// and the CSV export.
func FmtDatetime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
