package amqp

import (
	"encoding/json"
	"time"
)

// TransactionExportMessage asks the export worker to push one transaction
// to the spreadsheet. It carries only identifiers; the worker loads the
// full row from the database.
type TransactionExportMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionExportMessage(id, userID string) *TransactionExportMessage {
	return &TransactionExportMessage{
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *TransactionExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionExportMessageFromJSON(data []byte) (*TransactionExportMessage, error) {
	var msg TransactionExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
