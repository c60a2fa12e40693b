package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Export formats a request may ask for. They name the sink the worker writes to.
const (
	FormatCSV    = "csv"
	FormatSheets = "sheets"
	FormatBlob   = "blob"
)

// ExportRequestMessage asks the worker to export one account's transactions.
// The run row already exists in storage under RunID; the worker only fills it in.
type ExportRequestMessage struct {
	RunID     string    `json:"run_id"`
	AccountID int64     `json:"account_id"`
	From      time.Time `json:"from,omitzero"`
	To        time.Time `json:"to,omitzero"`
	Format    string    `json:"format"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportRequestMessage(runID string, accountID int64, from, to time.Time, format string) *ExportRequestMessage {
	return &ExportRequestMessage{
		RunID:     runID,
		AccountID: accountID,
		From:      from,
		To:        to,
		Format:    format,
		Timestamp: time.Now(),
	}
}

func (m *ExportRequestMessage) Validate() error {
	switch {
	case m.RunID == "":
		return errors.New("missing run id")
	case m.AccountID < 1:
		return errors.New("missing account id")
	case !m.To.IsZero() && m.To.Before(m.From):
		return errors.New("period ends before it starts")
	}
	switch m.Format {
	case "", FormatCSV, FormatSheets, FormatBlob:
		return nil
	}
	return errors.New("unknown export format " + m.Format)
}

// ToJSON converts the message to JSON bytes
func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportRequestMessageFromJSON decodes and validates a message body.
func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
