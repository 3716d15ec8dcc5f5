package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteCheckpointCoalescesSameHeight(t *testing.T) {
	c := newTestChain(t)
	s := c.st

	require.NoError(t, s.writeCheckpoint("x", 5, big.NewInt(10)))
	require.NoError(t, s.writeCheckpoint("x", 5, big.NewInt(20)))
	require.NoError(t, s.writeCheckpoint("x", 7, big.NewInt(30)))

	cps, err := s.getCheckpoints("x")
	require.NoError(t, err)
	require.Len(t, cps, 2)
	require.Equal(t, uint64(5), cps[0].FromHeight)
	require.Equal(t, int64(20), cps[0].Votes.Int64())
	require.Equal(t, uint64(7), cps[1].FromHeight)
	require.Equal(t, int64(30), cps[1].Votes.Int64())
}

func TestCheckpointsAtRightmostAtOrBelow(t *testing.T) {
	c := newTestChain(t)
	s := c.st

	require.NoError(t, s.writeCheckpoint("x", 1, big.NewInt(100)))
	require.NoError(t, s.writeCheckpoint("x", 5, big.NewInt(200)))
	require.NoError(t, s.writeCheckpoint("x", 9, big.NewInt(300)))

	cases := []struct {
		height uint64
		want   int64
	}{
		{0, 0},
		{1, 100},
		{4, 100},
		{5, 200},
		{8, 200},
		{9, 300},
		{100, 300},
	}
	for _, tc := range cases {
		got, err := s.checkpointsAt("x", tc.height)
		require.NoError(t, err)
		require.Equal(t, tc.want, got.Int64(), "height %d", tc.height)
	}
}

func TestCheckpointsAtEmptyLog(t *testing.T) {
	c := newTestChain(t)

	got, err := c.st.checkpointsAt("nobody", 42)
	require.NoError(t, err)
	require.Zero(t, got.Sign())
}

func TestCheckpointsSurviveCommit(t *testing.T) {
	c := newTestChain(t)
	require.NoError(t, c.st.writeCheckpoint("x", c.height(), big.NewInt(77)))
	c.commit()

	got, err := c.st.latestCheckpoint("x")
	require.NoError(t, err)
	require.Equal(t, int64(77), got.Int64())
}
