package amqp

import (
	"encoding/json"
	"time"
)

// ReportEmailMessage carries a fully rendered report email from the
// dispatcher to the delivery worker. The body is rendered up front so the
// worker needs no access to transaction data.
type ReportEmailMessage struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportEmailMessage creates a delivery message for one recipient.
func NewReportEmailMessage(ownerID, recipient, subject, body string) *ReportEmailMessage {
	return &ReportEmailMessage{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportEmailMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportEmailMessageFromJSON creates a message from JSON bytes
func ReportEmailMessageFromJSON(data []byte) (*ReportEmailMessage, error) {
	var msg ReportEmailMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
