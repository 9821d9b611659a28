package paystack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "X-Paystack-Signature"

const EventChargeSuccess = "charge.success"

// Transaction statuses returned by /transaction/verify.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusPending   = "pending"
	StatusOngoing   = "ongoing"
	StatusReversed  = "reversed"
)

// ID is a positive integer id that the processor may echo back as either a
// JSON number or a string.
type ID uint

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*id = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", string(b))
	}
	*id = ID(v)
	return nil
}

// Metadata is attached at initialization and echoed back in webhooks and
// verify responses.
type Metadata struct {
	CourseID ID `json:"course_id"`
	BuyerID  ID `json:"buyer_id"`
}

// ParseMetadata accepts a metadata object, a JSON string containing one,
// or an empty value.
func ParseMetadata(raw json.RawMessage) (Metadata, error) {
	var md Metadata
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return md, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return md, err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			return md, nil
		}
		raw = json.RawMessage(inner)
	}
	if raw[0] != '{' {
		// Paystack sends 0 when no metadata was attached.
		return md, nil
	}

	if err := json.Unmarshal(raw, &md); err != nil {
		return md, fmt.Errorf("invalid metadata: %w", err)
	}
	return md, nil
}

type InitializeRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency,omitempty"`
	Reference   string   `json:"reference"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the data block of a verify response.
type Transaction struct {
	ID              int64           `json:"id"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          string          `json:"paid_at"`
	Metadata        json.RawMessage `json:"metadata"`
}

func (t *Transaction) Succeeded() bool {
	return t != nil && t.Status == StatusSuccess
}

// Event is an inbound webhook notification. Data keeps its raw form
// because its shape depends on the event type.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type EventData struct {
	ID        int64           `json:"id"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Metadata  json.RawMessage `json:"metadata"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// ParseEvent decodes the event envelope of a webhook body. It does not
// verify the signature.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if strings.TrimSpace(ev.Event) == "" {
		return nil, fmt.Errorf("invalid webhook payload: missing event")
	}
	return &ev, nil
}

// Charge decodes Data as a charge event.
func (e *Event) Charge() (*EventData, error) {
	if len(bytes.TrimSpace(e.Data)) == 0 {
		return nil, fmt.Errorf("invalid charge data: missing data")
	}
	var data EventData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("invalid charge data: %w", err)
	}
	return &data, nil
}
