package notify

import (
	"encoding/json"
	"time"

	"mnyxls/internal/core"

	"github.com/google/uuid"
)

// RunCompletedMessage announces a finished import run.
type RunCompletedMessage struct {
	RunID      string              `json:"run_id"`
	Timestamp  time.Time           `json:"timestamp"`
	Reports    int                 `json:"reports"`
	Accounts   int                 `json:"accounts"`
	Categories int                 `json:"categories"`
	Txns       int                 `json:"txns"`
	TxnDateMin string              `json:"txn_date_min,omitempty"`
	TxnDateMax string              `json:"txn_date_max,omitempty"`
	Total      string              `json:"total"`
	Sheets     []SheetSummaryEntry `json:"sheets"`
}

type SheetSummaryEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Rows int    `json:"rows"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRunCompletedMessage builds the event for summary. A summary without a
// run id gets a new one.
func NewRunCompletedMessage(summary core.RunSummary) *RunCompletedMessage {
	if summary.RunID == "" {
		summary.RunID = NewRunID()
	}
	sheets := make([]SheetSummaryEntry, len(summary.Sheets))
	for i, s := range summary.Sheets {
		sheets[i] = SheetSummaryEntry{Name: s.Name, Type: s.Type, Rows: s.Rows}
	}
	return &RunCompletedMessage{
		RunID:      summary.RunID,
		Timestamp:  time.Now().UTC(),
		Reports:    summary.Reports,
		Accounts:   summary.Accounts,
		Categories: summary.Categories,
		Txns:       summary.Txns,
		TxnDateMin: summary.TxnDateMin.String(),
		TxnDateMax: summary.TxnDateMax.String(),
		Total:      core.FormatAmount(summary.Total),
		Sheets:     sheets,
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunCompletedMessageFromJSON creates a message from JSON bytes
func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
