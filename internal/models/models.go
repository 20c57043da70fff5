package models

import "time"

type OrderType int32

const (
	OrderTypeApp    OrderType = 0
	OrderTypeOnline OrderType = 1
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeApp:
		return "APP"
	case OrderTypeOnline:
		return "ONLINE"
	}
	return "UNKNOWN"
}

// ParseOrderType maps "APP" to OrderTypeApp. Any other value, including
// unknown strings and lower-case "app", yields OrderTypeOnline.
func ParseOrderType(s string) OrderType {
	if s == "APP" {
		return OrderTypeApp
	}
	return OrderTypeOnline
}

type Address struct {
	Street     string `json:"street"`
	Number     uint32 `json:"number"`
	City       string `json:"city"`
	PostalCode uint32 `json:"postal_code"`
}

type StartRequest struct {
	ClientID string    `json:"client_id"`
	Type     OrderType `json:"type"`
	Address  Address   `json:"address"`
	Time     time.Time `json:"time"`
}

type StartResponse struct {
	OrderID string `json:"order_id"`
}

type UpdateEvent struct {
	ClientID string    `json:"client_id"`
	Address  Address   `json:"address"`
	Time     time.Time `json:"time"`
}

type UpdateResponse struct {
	Updated []bool `json:"updated"`
}

// AddressEvent is the flat form callers use to describe one order update.
type AddressEvent struct {
	ClientID   string
	Street     string
	Number     uint32
	City       string
	PostalCode uint32
	Time       time.Time
}

func (e AddressEvent) UpdateEvent() *UpdateEvent {
	return &UpdateEvent{
		ClientID: e.ClientID,
		Address: Address{
			Street:     e.Street,
			Number:     e.Number,
			City:       e.City,
			PostalCode: e.PostalCode,
		},
		Time: e.Time,
	}
}
