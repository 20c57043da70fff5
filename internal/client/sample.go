package client

import (
	"iter"
	"time"

	"gitlab.ozon.dev/qwestard/orders/internal/models"
)

var SampleTime = time.Date(2024, 5, 13, 18, 56, 0, 0, time.UTC)

// SampleStart is the demo order used by the client command.
func SampleStart() StartParams {
	return StartParams{
		ClientID:   "123abc",
		Type:       "APP",
		Street:     "Av. Liberdade",
		Number:     25,
		City:       "Lisboa",
		PostalCode: 1600,
		Time:       SampleTime,
	}
}

// SampleEvents yields n address updates for the demo client. House numbers
// count up from 25 and times advance 15 seconds per event.
func SampleEvents(n int, start time.Time) iter.Seq[models.AddressEvent] {
	return func(yield func(models.AddressEvent) bool) {
		t := start
		for i := range n {
			ev := models.AddressEvent{
				ClientID:   "123abc",
				Street:     "Av. Liberdade",
				Number:     uint32(25 + i),
				City:       "Lisboa",
				PostalCode: 1600,
				Time:       t,
			}
			if !yield(ev) {
				return
			}
			t = t.Add(15 * time.Second)
		}
	}
}
