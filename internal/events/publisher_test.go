package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserEventEncoding(t *testing.T) {
	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	body, err := json.Marshal(UserEvent{
		UserID:   7,
		Username: "wx_o-bound-12_1756600000000",
		OpenID:   "o-bound-12345",
		At:       at,
	})
	require.NoError(t, err)
	require.JSONEq(t, `{
		"userId": 7,
		"username": "wx_o-bound-12_1756600000000",
		"openId": "o-bound-12345",
		"at": "2026-08-31T12:00:00Z"
	}`, string(body))
}

func TestUserEventOmitsEmptyOpenID(t *testing.T) {
	// Password accounts carry no openid; consumers must not see an empty one.
	body, err := json.Marshal(UserEvent{UserID: 1, Username: "alice", At: time.Now()})
	require.NoError(t, err)
	require.NotContains(t, string(body), "openId")
}

func TestNopPublisherDiscards(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.Publish(context.Background(), UserLogin, UserEvent{UserID: 1, Username: "alice"})
	require.NoError(t, p.Close())
}
