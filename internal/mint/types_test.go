package mint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoutineIDs(t *testing.T) {
	require.Equal(t, uint32(5000), RoutineOpen.RequestID())
	require.Equal(t, uint32(5106), RoutinePollAsync.ReplyID())

	for r := Routine(0); r < RoutineCount; r++ {
		require.Equal(t, r.RequestID()+ReplyOffset, r.ReplyID())

		got, ok := RoutineForID(r.RequestID())
		require.True(t, ok)
		require.Equal(t, r, got)
	}
}

func TestRoutineForID_Unroutable(t *testing.T) {
	for _, id := range []uint32{0, 4999, 5007, 5100, 9999} {
		_, ok := RoutineForID(id)
		require.False(t, ok, "id %d must not route", id)
	}
}

func TestOneWay(t *testing.T) {
	for r := Routine(0); r < RoutineCount; r++ {
		require.Equal(t, r == RoutineClose, r.OneWay(), "routine %s", r)
	}
}

func TestNewEmptyMessages(t *testing.T) {
	for r := Routine(0); r < RoutineCount; r++ {
		req, err := NewEmptyRequest(r)
		require.NoError(t, err)
		require.NotNil(t, req)

		resp, err := NewEmptyResponse(r)
		if r.OneWay() {
			require.ErrorIs(t, err, ErrUnimplemented)
			continue
		}
		require.NoError(t, err)
		require.NotNil(t, resp)
	}
}
