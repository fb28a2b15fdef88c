package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		hubEvent string
		payload  string
		check    func(t *testing.T, evt StreamEvent, err error)
	}{
		{
			name:     "bid uses created_at",
			hubEvent: HubEventBidPlaced,
			payload:  `{"id":"b1","amount":30625000,"created_at":"2025-03-10T09:00:05Z"}`,
			check: func(t *testing.T, evt StreamEvent, err error) {
				require.NoError(t, err)
				assert.Equal(t, "b1", evt.ID)
				assert.Equal(t, KindBid, evt.Kind)
				assert.Equal(t, HubEventBidPlaced, evt.Name)
				assert.True(t, evt.OccurredAt.Equal(time.Date(2025, time.March, 10, 9, 0, 5, 0, time.UTC)))
			},
		},
		{
			name:     "message uses sent_at",
			hubEvent: HubEventReceiveMessage,
			payload:  `{"id":"m1","content":"hi","sent_at":"2025-03-10T09:01:00Z"}`,
			check: func(t *testing.T, evt StreamEvent, err error) {
				require.NoError(t, err)
				assert.Equal(t, KindMessage, evt.Kind)
				assert.Equal(t, 1, evt.OccurredAt.Minute())
			},
		},
		{
			name:     "auction update uses updated_at",
			hubEvent: HubEventAuctionUpdated,
			payload:  `{"id":"a1","updated_at":"2025-03-10T09:02:00Z"}`,
			check: func(t *testing.T, evt StreamEvent, err error) {
				require.NoError(t, err)
				assert.Equal(t, KindBid, evt.Kind)
			},
		},
		{
			name:     "unknown event",
			hubEvent: "UserTyping",
			payload:  `{"id":"x"}`,
			check: func(t *testing.T, _ StreamEvent, err error) {
				assert.Error(t, err)
			},
		},
		{
			name:     "missing id",
			hubEvent: HubEventReceiveNotification,
			payload:  `{"created_at":"2025-03-10T09:00:00Z"}`,
			check: func(t *testing.T, _ StreamEvent, err error) {
				assert.ErrorContains(t, err, "has no id")
			},
		},
		{
			name:     "missing timestamp",
			hubEvent: HubEventReceiveNotification,
			payload:  `{"id":"n1"}`,
			check: func(t *testing.T, _ StreamEvent, err error) {
				assert.ErrorContains(t, err, "has no timestamp")
			},
		},
		{
			name:     "invalid json",
			hubEvent: HubEventBidPlaced,
			payload:  `{"id":`,
			check: func(t *testing.T, _ StreamEvent, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			evt, err := Decode(tc.hubEvent, json.RawMessage(tc.payload))
			tc.check(t, evt, err)
		})
	}
}

func TestStreamEventInto(t *testing.T) {
	evt, err := Decode(HubEventBidPlaced, json.RawMessage(`{"id":"b1","amount":500000,"created_at":"2025-03-10T09:00:00Z"}`))
	require.NoError(t, err)

	var bid struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
	}
	require.NoError(t, evt.Into(&bid))
	assert.Equal(t, int64(500_000), bid.Amount)

	var wrong struct {
		Amount string `json:"amount"`
	}
	assert.Error(t, evt.Into(&wrong))
}

func TestKindOfAndGroups(t *testing.T) {
	kind, ok := KindOf(HubEventReceiveNotification)
	assert.True(t, ok)
	assert.Equal(t, KindNotification, kind)

	_, ok = KindOf("Ping")
	assert.False(t, ok)

	assert.Equal(t, "auction:a1", AuctionGroup("a1"))
}
