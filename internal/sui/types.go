package sui

import (
	"encoding/json"
	"fmt"
)

// EventID uniquely identifies an event within the ledger.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// Event is a single Move event as returned by suix_queryEvents.
type Event struct {
	ID                EventID
	PackageID         string
	TransactionModule string
	Sender            string
	Type              string
	ParsedJSON        json.RawMessage
	TimestampMs       int64 // 0 when the node did not report it
}

// EventPage is one page of QueryEvents results.
type EventPage struct {
	Data        []Event
	NextCursor  *EventID
	HasNextPage bool
}

// EventNotification is delivered for each event on an active subscription.
type EventNotification struct {
	SubscriptionID uint64
	Event          Event
}

// EventTypeTag builds the fully qualified Move event type for a package scope.
func EventTypeTag(packageID, module, name string) string {
	return fmt.Sprintf("%s::%s::%s", packageID, module, name)
}
