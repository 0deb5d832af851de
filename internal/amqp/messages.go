package amqp

import (
	"encoding/json"
	"time"
)

// ReceiptTaskMessage is the lightweight queue payload for a receipt
// analysis task. It carries only the task id; the worker fetches the
// stored image from the database. Keeping images out of the broker
// bounds message size.
type ReceiptTaskMessage struct {
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptTaskMessage(taskID string) *ReceiptTaskMessage {
	return &ReceiptTaskMessage{
		TaskID:    taskID,
		Timestamp: time.Now(),
	}
}

func (m *ReceiptTaskMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReceiptTaskMessageFromJSON(data []byte) (*ReceiptTaskMessage, error) {
	var msg ReceiptTaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TaskID == "" {
		return nil, errEmptyTaskID
	}
	return &msg, nil
}
