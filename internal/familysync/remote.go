package familysync

import (
	"context"
	"errors"

	"shared-basket/internal/basket"
)

// ErrNoDocument is returned when nothing was pushed for a family yet.
var ErrNoDocument = errors.New("no remote document")

// Document is the state shared between the devices of one family.
type Document struct {
	Items    []basket.Item `json:"items"`
	Location string        `json:"location"`
	IsGps    bool          `json:"isGps"`
}

// Remote stores one Document per family id. Writes replace the whole
// document; the last writer wins.
type Remote interface {
	Push(ctx context.Context, familyID string, doc Document) error
	Pull(ctx context.Context, familyID string) (Document, error)
}
