package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SlotKey is the natural key of a session occurrence.
type SlotKey struct {
	TemplateID primitive.ObjectID
	Date       string // DateLayout
}

func (k SlotKey) String() string {
	return k.TemplateID.Hex() + ":" + k.Date
}

// SessionOccurrence is one dated instance of a ClassTemplate. It is derived
// on demand and only ever referenced by bookings through its SlotKey.
type SessionOccurrence struct {
	TemplateID      primitive.ObjectID `json:"templateId"`
	Date            string             `json:"date"`
	Day             time.Weekday       `json:"-"`
	StartTime       string             `json:"startTime"`
	EndTime         string             `json:"endTime"`
	DurationMinutes int                `json:"durationMinutes"`
	Capacity        int                `json:"capacity"`
	Start           time.Time          `json:"start"`
	End             time.Time          `json:"end"`
}

func (o SessionOccurrence) Key() SlotKey {
	return SlotKey{TemplateID: o.TemplateID, Date: o.Date}
}

// HasStarted reports whether the session is no longer offerable at now.
func (o SessionOccurrence) HasStarted(now time.Time) bool {
	return !o.Start.After(now)
}
