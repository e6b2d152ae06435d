// Package cluster implements the leader-based replication protocol: role
// and term tracking, heartbeats, elections, and fan-out replication from
// primary to secondaries. Every node holds the complete keyspace, so
// membership only needs to answer "who are my peers and who do I currently
// believe is primary", not "who owns this key".
package cluster

import "fmt"

// Peer is one other node reachable on the control plane and the client
// wire protocol.
type Peer struct {
	ID      string
	Address string // host:port
}

// Membership is the static list of peers a node was started with: a fixed
// cluster with no runtime join/leave protocol, so this is a simple
// read-only list rather than a mutable ring.
type Membership struct {
	selfID   string
	selfAddr string
	peers    []Peer
}

// NewMembership builds a Membership for selfID/selfAddr given the other
// nodes in the cluster.
func NewMembership(selfID, selfAddr string, peers []Peer) *Membership {
	return &Membership{selfID: selfID, selfAddr: selfAddr, peers: peers}
}

func (m *Membership) SelfID() string   { return m.selfID }
func (m *Membership) SelfAddr() string { return m.selfAddr }

// Peers returns the other nodes in the cluster (never including self).
func (m *Membership) Peers() []Peer {
	out := make([]Peer, len(m.peers))
	copy(out, m.peers)
	return out
}

// Size is the total cluster size, peers plus self.
func (m *Membership) Size() int { return len(m.peers) + 1 }

// VoteThreshold is the vote count a candidate must exceed (strictly) to win
// an election: floor(Size()/2). A lone node with no peers has Size()==1 and
// threshold 0, so a single self-vote already exceeds it — see OQ1 in
// DESIGN.md for why that auto-election behavior is intentionally
// reproduced rather than patched.
func (m *Membership) VoteThreshold() int { return m.Size() / 2 }

func (m *Membership) String() string {
	return fmt.Sprintf("node %s@%s with %d peer(s)", m.selfID, m.selfAddr, len(m.peers))
}
