package cluster

import (
	"net"
	"time"

	"github.com/MariamHany01/key-valueDB/internal/wire"
)

// peerTimeout is the connect+read budget for any single control-plane or
// replication RPC. A peer that misses this is treated as down — no retry
// loop here, the caller (heartbeat/election/replicate fan out) decides what
// to do with a failure.
const peerTimeout = 2 * time.Second

// sendToPeer dials addr, writes req as one framed message, and reads back
// exactly one framed response. It owns the entire connection lifecycle:
// peer sockets here are single-RPC, not persistent.
func sendToPeer(addr string, req *wire.Request) (*wire.Response, error) {
	conn, err := net.DialTimeout("tcp", addr, peerTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(peerTimeout)); err != nil {
		return nil, err
	}

	if err := wire.WriteRequest(conn, req); err != nil {
		return nil, err
	}
	return wire.ReadResponse(conn)
}
