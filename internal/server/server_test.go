package server

import (
	"net"
	"testing"

	"github.com/MariamHany01/key-valueDB/internal/cluster"
	"github.com/MariamHany01/key-valueDB/internal/store"
	"github.com/MariamHany01/key-valueDB/internal/wire"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, startAsPrimary bool) (*Server, string) {
	t.Helper()

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	m := cluster.NewMembership("self", "127.0.0.1:0", nil)
	c := cluster.NewCoordinator(s, m, cluster.Addr{Host: "127.0.0.1", Port: 0}, startAsPrimary)

	srv := New("127.0.0.1:0", s, c)
	go func() { _ = srv.Serve() }()
	<-srv.Ready()
	t.Cleanup(srv.Stop)

	return srv, srv.Addr().String()
}

func roundTrip(t *testing.T, addr string, req *wire.Request) *wire.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteRequest(conn, req))
	resp, err := wire.ReadResponse(conn)
	require.NoError(t, err)
	return resp
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	_, addr := startTestServer(t, true)
	resp := roundTrip(t, addr, &wire.Request{Operation: wire.OpGet, Key: "missing"})
	require.Equal(t, wire.StatusNotFound, resp.Status)
}

func TestSetThenGetOnPrimary(t *testing.T) {
	_, addr := startTestServer(t, true)

	resp := roundTrip(t, addr, &wire.Request{Operation: wire.OpSet, Key: "a", Value: []byte(`"1"`)})
	require.Equal(t, wire.StatusOK, resp.Status)
	require.True(t, resp.Success != nil && *resp.Success)

	resp = roundTrip(t, addr, &wire.Request{Operation: wire.OpGet, Key: "a"})
	require.Equal(t, wire.StatusOK, resp.Status)
	require.JSONEq(t, `"1"`, string(resp.Value))
}

func TestSetOnSecondaryIsRejectedWithPrimaryHint(t *testing.T) {
	_, addr := startTestServer(t, false)

	// Teach the secondary who the primary is.
	resp := roundTrip(t, addr, &wire.Request{Operation: wire.OpHeartbeat, Term: 1, PrimaryHost: "localhost", PrimaryPort: 10001})
	require.Equal(t, wire.StatusOK, resp.Status)

	resp = roundTrip(t, addr, &wire.Request{Operation: wire.OpSet, Key: "a", Value: []byte(`1`)})
	require.Equal(t, wire.StatusError, resp.Status)
	require.Equal(t, "Not primary", resp.Message)
	require.Equal(t, []any{"localhost", float64(10001)}, resp.Primary)
}

func TestUnknownOperationIsError(t *testing.T) {
	_, addr := startTestServer(t, true)
	resp := roundTrip(t, addr, &wire.Request{Operation: "BOGUS"})
	require.Equal(t, wire.StatusError, resp.Status)
}

func TestDeleteMissingKeyOnPrimaryIsSuccessFalse(t *testing.T) {
	_, addr := startTestServer(t, true)
	resp := roundTrip(t, addr, &wire.Request{Operation: wire.OpDelete, Key: "nope"})
	require.Equal(t, wire.StatusOK, resp.Status)
	require.False(t, *resp.Success)
}

func TestBulkSetOnPrimary(t *testing.T) {
	_, addr := startTestServer(t, true)

	resp := roundTrip(t, addr, &wire.Request{
		Operation: wire.OpBulkSet,
		Items: []wire.Item{
			{Key: "k1", Value: []byte(`1`)},
			{Key: "k2", Value: []byte(`2`)},
		},
	})
	require.Equal(t, wire.StatusOK, resp.Status)

	resp = roundTrip(t, addr, &wire.Request{Operation: wire.OpGet, Key: "k2"})
	require.JSONEq(t, `2`, string(resp.Value))
}

func TestVoteRequestDispatch(t *testing.T) {
	_, addr := startTestServer(t, false)

	resp := roundTrip(t, addr, &wire.Request{Operation: wire.OpVoteRequest, Term: 1, CandidateID: "cand"})
	require.Equal(t, wire.StatusOK, resp.Status)
	require.NotNil(t, resp.VoteGranted)
	require.True(t, *resp.VoteGranted)
}

func TestReplicateAppliesOnSecondary(t *testing.T) {
	_, addr := startTestServer(t, false)

	resp := roundTrip(t, addr, &wire.Request{
		Operation: wire.OpReplicate,
		OriginalOperation: &wire.Request{
			Operation: wire.OpSet,
			Key:       "replicated",
			Value:     []byte(`"v"`),
		},
	})
	require.Equal(t, wire.StatusOK, resp.Status)

	resp = roundTrip(t, addr, &wire.Request{Operation: wire.OpGet, Key: "replicated"})
	require.JSONEq(t, `"v"`, string(resp.Value))
}
