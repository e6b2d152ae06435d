package cluster

import (
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/MariamHany01/key-valueDB/internal/metrics"
	"github.com/MariamHany01/key-valueDB/internal/store"
	"github.com/MariamHany01/key-valueDB/internal/wire"
	"golang.org/x/sync/errgroup"
)

const (
	// HeartbeatPeriod is how often a primary sends HEARTBEAT to every peer.
	HeartbeatPeriod = 1 * time.Second
	// HeartbeatTimeout is the fixed part of how long a non-primary waits
	// without a heartbeat before it starts an election; Tick adds the
	// randomized election timeout on top of it.
	HeartbeatTimeout = 5 * time.Second
)

// electionTimeoutRange is the randomized jitter window added atop
// HeartbeatTimeout, re-rolled at the start of every election and on every
// accepted heartbeat so peers don't all notice a dead primary and call an
// election in lockstep.
var electionTimeoutRange = [2]time.Duration{3 * time.Second, 6 * time.Second}

func randomElectionTimeout() time.Duration {
	lo, hi := electionTimeoutRange[0], electionTimeoutRange[1]
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

// Coordinator owns a node's role/term state machine and drives heartbeats,
// elections, and replication fan-out. It wraps a *store.Store, gating
// writes on role the way the request server's dispatcher expects.
type Coordinator struct {
	store      *store.Store
	membership *Membership
	self       Addr
	state      *state

	electionTimeout time.Duration
}

// NewCoordinator builds a Coordinator for self, starting as SECONDARY
// unless startAsPrimary bootstraps it at term 0 — an operational shortcut
// for standing up a brand new cluster, not a correctness feature.
func NewCoordinator(s *store.Store, m *Membership, self Addr, startAsPrimary bool) *Coordinator {
	c := &Coordinator{
		store:           s,
		membership:      m,
		self:            self,
		state:           newState(),
		electionTimeout: randomElectionTimeout(),
	}
	if startAsPrimary {
		c.state.mu.Lock()
		c.state.role = Primary
		addr := self
		c.state.primaryAddr = &addr
		c.state.mu.Unlock()
	}
	c.reportMetrics()
	return c
}

// reportMetrics syncs the process-wide role/term gauges to this
// coordinator's current state. Safe to call without holding state.mu.
func (c *Coordinator) reportMetrics() {
	metrics.Role.Set(float64(c.Role()))
	metrics.Term.Set(float64(c.Term()))
}

func (c *Coordinator) Role() Role        { return c.state.Role() }
func (c *Coordinator) Term() uint64      { return c.state.Term() }
func (c *Coordinator) PrimaryAddr() *Addr { return c.state.PrimaryAddr() }

// IsPrimary reports whether this node currently accepts client mutations.
func (c *Coordinator) IsPrimary() bool { return c.Role() == Primary }

// ─── Vote handling ──────────────────────────────────────────────────────────

// HandleVoteRequest implements the voter decision table and returns the
// (granted, term) pair to reply with.
func (c *Coordinator) HandleVoteRequest(candidateTerm uint64, candidateID string) (granted bool, term uint64) {
	defer c.reportMetrics()

	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if candidateTerm > c.state.term {
		c.state.term = candidateTerm
		c.state.votedFor = ""
		c.state.role = Secondary
	}

	if candidateTerm == c.state.term && (c.state.votedFor == "" || c.state.votedFor == candidateID) {
		c.state.votedFor = candidateID
		return true, c.state.term
	}
	return false, c.state.term
}

// ─── Heartbeat handling ─────────────────────────────────────────────────────

// HandleHeartbeat implements the secondary-side heartbeat update: it
// always refreshes the liveness clock, and if the sender's term is at least
// as new as ours, adopts it, records the sender as primary, and forces our
// own role back to SECONDARY (a PRIMARY seeing a same-or-newer-term
// heartbeat has lost an election it didn't know was happening).
func (c *Coordinator) HandleHeartbeat(term uint64, primaryHost string, primaryPort int) {
	defer c.reportMetrics()

	c.state.touchHeartbeat()

	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	if term >= c.state.term {
		c.state.term = term
		addr := Addr{Host: primaryHost, Port: primaryPort}
		c.state.primaryAddr = &addr
		c.rerollElectionTimeoutLocked()
		c.state.role = Secondary
	}
}

func (c *Coordinator) rerollElectionTimeoutLocked() {
	c.electionTimeout = randomElectionTimeout()
}

// ─── Heartbeat / election driver ────────────────────────────────────────────

// Tick is called periodically (by the scheduler in cmd/kvnode) and does one of: send heartbeats
// (if primary) or check whether the heartbeat timeout has elapsed and, if
// so, start an election (if not).
func (c *Coordinator) Tick() {
	if c.Role() == Primary {
		c.sendHeartbeats()
		return
	}

	if c.state.sinceHeartbeat() > HeartbeatTimeout+c.electionTimeoutJitter() {
		c.startElection()
	}
}

func (c *Coordinator) electionTimeoutJitter() time.Duration {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return c.electionTimeout
}

func (c *Coordinator) sendHeartbeats() {
	term := c.Term()
	peers := c.membership.Peers()

	var g errgroup.Group
	for _, p := range peers {
		p := p
		g.Go(func() error {
			req := &wire.Request{
				Operation:   wire.OpHeartbeat,
				Term:        term,
				PrimaryHost: c.self.Host,
				PrimaryPort: c.self.Port,
			}
			if _, err := sendToPeer(p.Address, req); err != nil {
				log.Printf("cluster: heartbeat to %s (%s) failed: %v", p.ID, p.Address, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// startElection implements the per-candidate election protocol. Note the
// majority check uses VoteThreshold(), which is len(peers)+1 accounting
// rather than a fixed notion of majority — see OQ1 in DESIGN.md: a lone
// node with zero peers wins on its own vote alone.
func (c *Coordinator) startElection() {
	defer c.reportMetrics()

	c.state.mu.Lock()
	c.state.role = Candidate
	c.state.term++
	term := c.state.term
	c.state.votedFor = c.membership.SelfID()
	c.rerollElectionTimeoutLocked()
	c.state.mu.Unlock()

	log.Printf("cluster: %s starting election for term %d", c.membership.SelfID(), term)

	peers := c.membership.Peers()
	votes := int32(1) // self-vote

	var g errgroup.Group
	for _, p := range peers {
		p := p
		g.Go(func() error {
			req := &wire.Request{
				Operation:   wire.OpVoteRequest,
				Term:        term,
				CandidateID: c.membership.SelfID(),
			}
			resp, err := sendToPeer(p.Address, req)
			if err != nil {
				log.Printf("cluster: vote request to %s (%s) failed: %v", p.ID, p.Address, err)
				return nil
			}
			if resp.VoteGranted != nil && *resp.VoteGranted && resp.Term == term {
				atomic.AddInt32(&votes, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.state.mu.Lock()
	defer c.state.mu.Unlock()

	// Another node may have already sent us a newer-or-equal-term heartbeat
	// while we were canvassing; don't clobber that with a stale win.
	if c.state.term != term || c.state.role != Candidate {
		return
	}

	if int(votes) > c.membership.VoteThreshold() {
		c.state.role = Primary
		self := c.self
		c.state.primaryAddr = &self
		log.Printf("cluster: %s became PRIMARY for term %d (%d votes)", c.membership.SelfID(), term, votes)
	} else {
		c.state.role = Secondary
	}
}

// ─── Replication ────────────────────────────────────────────────────────────

// Replicate fans original out to every peer as a REPLICATE message, after
// the caller has already durably committed it locally. Failures are logged
// and otherwise ignored — replication here is best-effort: a client's
// write is acknowledged on local durability alone.
func (c *Coordinator) Replicate(original *wire.Request) {
	peers := c.membership.Peers()
	if len(peers) == 0 {
		return
	}

	req := &wire.Request{Operation: wire.OpReplicate, OriginalOperation: original}

	var g errgroup.Group
	for _, p := range peers {
		p := p
		g.Go(func() error {
			if _, err := sendToPeer(p.Address, req); err != nil {
				log.Printf("cluster: replicate to %s (%s) failed: %v", p.ID, p.Address, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ApplyReplicated applies a REPLICATE payload locally without re-replicating
// it. Per OQ2 in DESIGN.md (reproduced rather than tightened) the only gate
// is the receiver's current role — no per-operation term check against the
// wrapping HEARTBEAT chain.
func (c *Coordinator) ApplyReplicated(original *wire.Request) error {
	if c.Role() != Secondary {
		return nil
	}
	return applyMutation(c.store, original)
}

// applyMutation executes a SET/DELETE/BULK_SET request directly against the
// store for REPLICATE application. A primary's own local writes go through
// the dispatcher's applyLocalMutation in internal/server instead.
func applyMutation(s *store.Store, req *wire.Request) error {
	switch req.Operation {
	case wire.OpSet:
		return s.Set(req.Key, req.Value)
	case wire.OpDelete:
		_, err := s.Delete(req.Key)
		return err
	case wire.OpBulkSet:
		items := make([]store.BulkSetItem, len(req.Items))
		for i, it := range req.Items {
			items[i] = store.BulkSetItem{Key: it.Key, Value: it.Value}
		}
		return s.BulkSet(items)
	}
	return nil
}
