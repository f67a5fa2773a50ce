package amqp

import (
	"encoding/json"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/prefs"
)

// ChangeMessage is the wire form of a preference change event. Optional
// row fields are pointers so "absent" (a delete event has no currency)
// survives the JSON round trip.
type ChangeMessage struct {
	Table     string    `json:"table"`
	Kind      string    `json:"kind"`
	Row       RowFields `json:"row"`
	Timestamp time.Time `json:"timestamp"`
}

type RowFields struct {
	UserID   string  `json:"user_id"`
	Currency *string `json:"currency,omitempty"`
	Theme    *string `json:"theme,omitempty"`
}

// NewChangeMessage converts a feed event into its wire form.
func NewChangeMessage(ev prefs.ChangeEvent) *ChangeMessage {
	msg := &ChangeMessage{
		Table:     ev.Table,
		Kind:      string(ev.Kind),
		Row:       RowFields{UserID: ev.Row.UserID},
		Timestamp: time.Now(),
	}
	if ev.Row.HasCurrency {
		currency := ev.Row.Currency
		msg.Row.Currency = &currency
	}
	if ev.Row.HasTheme {
		theme := string(ev.Row.Theme)
		msg.Row.Theme = &theme
	}
	return msg
}

// Event converts the wire form back into a feed event. Validation
// happens in the subscriber handlers, not here.
func (m *ChangeMessage) Event() prefs.ChangeEvent {
	ev := prefs.ChangeEvent{
		Table: m.Table,
		Kind:  prefs.ChangeKind(m.Kind),
		Row:   prefs.ChangeRow{UserID: m.Row.UserID},
	}
	if m.Row.Currency != nil {
		ev.Row.Currency = *m.Row.Currency
		ev.Row.HasCurrency = true
	}
	if m.Row.Theme != nil {
		ev.Row.Theme = core.Theme(*m.Row.Theme)
		ev.Row.HasTheme = true
	}
	return ev
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SpendBackupMessage asks the backup worker to export one spend log.
// It carries only the ID; the worker reads the row from storage.
type SpendBackupMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewSpendBackupMessage(id int64) *SpendBackupMessage {
	return &SpendBackupMessage{ID: id, Timestamp: time.Now()}
}

func (m *SpendBackupMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SpendBackupMessageFromJSON(data []byte) (*SpendBackupMessage, error) {
	var msg SpendBackupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
