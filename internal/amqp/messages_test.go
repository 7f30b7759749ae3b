package amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionExportMessage_RoundTrip(t *testing.T) {
	msg := NewTransactionExportMessage("tx-123", "user-1")
	require.NotNil(t, msg)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)

	body, err := msg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":"tx-123"`)
	assert.Contains(t, string(body), `"user_id":"user-1"`)

	decoded, err := TransactionExportMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.UserID, decoded.UserID)
	assert.True(t, msg.Timestamp.Equal(decoded.Timestamp))
}

func TestTransactionExportMessageFromJSON_Invalid(t *testing.T) {
	_, err := TransactionExportMessageFromJSON([]byte("{not json"))
	assert.Error(t, err)
}
