package message

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStatusOrdering(t *testing.T) {
	require.Less(t, StatusSent.Rank(), StatusDelivered.Rank())
	require.Less(t, StatusDelivered.Rank(), StatusRead.Rank())
	require.Empty(t, StatusSent.Below())
	require.Equal(t, []Status{StatusSent}, StatusDelivered.Below())
	require.Equal(t, []Status{StatusSent, StatusDelivered}, StatusRead.Below())
}

func TestReceiptsFromTreatsEveryRowAsDelivered(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	r := ReceiptsFrom([]MessageReceipt{
		{UserID: a, DeliveredAt: time.Now()},
		{UserID: b, DeliveredAt: time.Now(), ReadAt: sql.NullTime{Time: time.Now(), Valid: true}},
	})
	require.Equal(t, []uuid.UUID{a, b}, r.DeliveredTo)
	require.Equal(t, []uuid.UUID{b}, r.ReadBy)
}

func TestStringListRoundTripsThroughColumn(t *testing.T) {
	v, err := StringList{"s3://a", "s3://b"}.Value()
	require.NoError(t, err)

	var out StringList
	require.NoError(t, out.Scan(v))
	require.Equal(t, StringList{"s3://a", "s3://b"}, out)

	require.NoError(t, out.Scan(nil))
	require.Nil(t, out)
	require.Error(t, out.Scan(42))
}
