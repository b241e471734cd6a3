package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// Event is one structured line describing a ledger mutation. Events are only
// written to the process log.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	AccountID  int64     `json:"account_id"`
	EntryID    int64     `json:"entry_id,omitempty"`
	CustomerID *int64    `json:"customer_id,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Status     string    `json:"status"`
	Details    any       `json:"details,omitempty"`
}

type Logger struct {
	now func() time.Time
}

func NewLogger() *Logger {
	return &Logger{now: time.Now}
}

func (a *Logger) LogEntryCreated(accountID, entryID int64, customerID *int64, amount decimal.Decimal) {
	a.log(Event{
		EventType:  "ENTRY_CREATED",
		AccountID:  accountID,
		EntryID:    entryID,
		CustomerID: customerID,
		Amount:     amount.StringFixed(2),
		Status:     "SUCCESS",
	})
}

func (a *Logger) LogEntrySettled(accountID, entryID int64, amount decimal.Decimal) {
	a.log(Event{
		EventType: "ENTRY_SETTLED",
		AccountID: accountID,
		EntryID:   entryID,
		Amount:    amount.StringFixed(2),
		Status:    "SUCCESS",
	})
}

func (a *Logger) LogLimitRejected(accountID int64, customerID *int64, amount, pending, limit decimal.Decimal) {
	a.log(Event{
		EventType:  "LIMIT_REJECTED",
		AccountID:  accountID,
		CustomerID: customerID,
		Amount:     amount.StringFixed(2),
		Status:     "REJECTED",
		Details: map[string]string{
			"pending": pending.StringFixed(2),
			"limit":   limit.StringFixed(2),
		},
	})
}

func (a *Logger) LogCustomerDeleted(accountID, customerID int64, entriesRemoved int64) {
	a.log(Event{
		EventType:  "CUSTOMER_DELETED",
		AccountID:  accountID,
		CustomerID: &customerID,
		Status:     "SUCCESS",
		Details:    map[string]int64{"entries_removed": entriesRemoved},
	})
}

func (a *Logger) log(event Event) {
	event.Timestamp = a.now()
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
