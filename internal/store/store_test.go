package store

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestSetGetDelete(t *testing.T) {
	s, _ := openTestStore(t)

	require.NoError(t, s.Set("a", Value(`"1"`)))
	v, ok := s.Get("a")
	require.True(t, ok)
	require.JSONEq(t, `"1"`, string(v))

	deleted, err := s.Delete("a")
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok = s.Get("a")
	require.False(t, ok)
}

func TestDeleteMissingKeyIsNoopFalse(t *testing.T) {
	s, _ := openTestStore(t)

	deleted, err := s.Delete("nope")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestBulkSetAtomicApply(t *testing.T) {
	s, _ := openTestStore(t)

	items := []BulkSetItem{
		{Key: "k0", Value: Value(`0`)},
		{Key: "k1", Value: Value(`1`)},
	}
	require.NoError(t, s.BulkSet(items))

	for _, it := range items {
		v, ok := s.Get(it.Key)
		require.True(t, ok)
		require.JSONEq(t, string(it.Value), string(v))
	}
}

func TestBulkSetZeroItemsIsNoop(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.BulkSet(nil))
	require.Empty(t, s.Snapshot())
}

func TestNestedValueRoundTrips(t *testing.T) {
	s, _ := openTestStore(t)
	nested := Value(`[{"a":[1,2,3]},{"b":"x"}]`)

	require.NoError(t, s.Set("nested", nested))
	v, ok := s.Get("nested")
	require.True(t, ok)
	require.JSONEq(t, string(nested), string(v))
}

func TestNoCheckpointAndEmptyWALGiveEmptyStore(t *testing.T) {
	s, _ := openTestStore(t)
	require.Empty(t, s.Snapshot())
}

func TestRecoveryReplaysWALAfterRestart(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set("a", Value(`1`)))
	require.NoError(t, s1.Set("b", Value(`2`)))
	_, err = s1.Delete("a")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	_, ok := s2.Get("a")
	require.False(t, ok)
	v, ok := s2.Get("b")
	require.True(t, ok)
	require.JSONEq(t, `2`, string(v))
}

func TestCheckpointTruncatesWALAndSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set("a", Value(`1`)))
	require.NoError(t, s1.Checkpoint())

	info, err := os.Stat(filepath.Join(dir, walFile))
	require.NoError(t, err)
	require.Zero(t, info.Size())

	_, err = os.Stat(filepath.Join(dir, checkpointFile))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	v, ok := s2.Get("a")
	require.True(t, ok)
	require.JSONEq(t, `1`, string(v))
}

func TestWALReplayDiscardsTruncatedTrailingRecord(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set("whole", Value(`"ok"`)))
	require.NoError(t, s1.Set("trailing", Value(`"will be cut"`)))
	require.NoError(t, s1.Close())

	path := filepath.Join(dir, walFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0644))

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, ok := s2.Get("whole")
	require.True(t, ok)
	require.JSONEq(t, `"ok"`, string(v))

	_, ok = s2.Get("trailing")
	require.False(t, ok, "truncated trailing record must be discarded, not applied")
}

func TestWALReplayDiscardsTruncatedLengthPrefix(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set("whole", Value(`1`)))
	require.NoError(t, s1.Close())

	path := filepath.Join(dir, walFile)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0644)
	require.NoError(t, err)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 9999)
	_, err = f.Write(lenBuf[:2]) // only 2 of the 4 length-prefix bytes
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, ok := s2.Get("whole")
	require.True(t, ok)
	require.JSONEq(t, `1`, string(v))
}

func TestEmptyCheckpointDeserializeFailureFallsBackToEmptyStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, checkpointFile), []byte("not json"), 0644))

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.Empty(t, s.Snapshot())
}
