package server

import (
	"github.com/MariamHany01/key-valueDB/internal/cluster"
	"github.com/MariamHany01/key-valueDB/internal/metrics"
	"github.com/MariamHany01/key-valueDB/internal/store"
	"github.com/MariamHany01/key-valueDB/internal/wire"
)

// dispatch routes a decoded request to the store or the coordinator and
// builds its reply. It is the only place that knows the mapping between
// wire operations and Go calls.
func (s *Server) dispatch(req *wire.Request) *wire.Response {
	resp := s.route(req)
	metrics.OperationsTotal.WithLabelValues(req.Operation, resp.Status).Inc()
	return resp
}

func (s *Server) route(req *wire.Request) *wire.Response {
	switch req.Operation {
	case wire.OpGet:
		return s.handleGet(req)
	case wire.OpSet, wire.OpDelete, wire.OpBulkSet:
		return s.handleMutation(req)
	case wire.OpHeartbeat:
		return s.handleHeartbeat(req)
	case wire.OpVoteRequest:
		return s.handleVoteRequest(req)
	case wire.OpReplicate:
		return s.handleReplicate(req)
	default:
		return wire.Error("Unknown operation", nil)
	}
}

func (s *Server) handleGet(req *wire.Request) *wire.Response {
	v, ok := s.store.Get(req.Key)
	if !ok {
		return wire.NotFound()
	}
	return wire.OK(wire.WithValue(v))
}

// handleMutation gates SET/DELETE/BULK_SET on primary role: only a primary
// accepts client writes. A non-primary refuses with its current belief
// about who the primary is, so a client can follow the hint and retry
// there instead of guessing.
func (s *Server) handleMutation(req *wire.Request) *wire.Response {
	if !s.coordinator.IsPrimary() {
		return notPrimaryError(s.coordinator)
	}

	success, err := applyLocalMutation(s.store, req)
	if err != nil {
		return wire.Error(err.Error(), nil)
	}

	s.coordinator.Replicate(req)

	return wire.OK(wire.WithSuccess(success))
}

// applyLocalMutation performs the SET/DELETE/BULK_SET itself and reports
// the success flag the reply carries: always true for SET and BULK_SET,
// and DELETE's own report of whether the key existed.
func applyLocalMutation(s *store.Store, req *wire.Request) (bool, error) {
	switch req.Operation {
	case wire.OpSet:
		return true, s.Set(req.Key, req.Value)
	case wire.OpDelete:
		return s.Delete(req.Key)
	case wire.OpBulkSet:
		items := make([]store.BulkSetItem, len(req.Items))
		for i, it := range req.Items {
			items[i] = store.BulkSetItem{Key: it.Key, Value: it.Value}
		}
		return true, s.BulkSet(items)
	}
	return false, nil
}

func (s *Server) handleHeartbeat(req *wire.Request) *wire.Response {
	s.coordinator.HandleHeartbeat(req.Term, req.PrimaryHost, req.PrimaryPort)
	return wire.OK()
}

func (s *Server) handleVoteRequest(req *wire.Request) *wire.Response {
	granted, term := s.coordinator.HandleVoteRequest(req.Term, req.CandidateID)
	return wire.OK(wire.WithVote(granted, term))
}

// handleReplicate applies a primary's fan-out write locally. It never
// itself fans back out — only the original primary replicates.
func (s *Server) handleReplicate(req *wire.Request) *wire.Response {
	if req.OriginalOperation == nil {
		return wire.Error("replicate missing original_operation", nil)
	}
	if err := s.coordinator.ApplyReplicated(req.OriginalOperation); err != nil {
		return wire.Error(err.Error(), nil)
	}
	return wire.OK()
}

func notPrimaryError(c *cluster.Coordinator) *wire.Response {
	primary := c.PrimaryAddr()
	if primary == nil {
		return wire.Error("Not primary", nil)
	}
	return wire.Error("Not primary", primary.JSON())
}
