package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Layouts used for the natural keys of derived sessions.
const (
	DateLayout  = "2006-01-02" // calendar date of a session
	ClockLayout = "15:04"      // local wall-clock time of day
)

// ClassTemplate is a trainer-authored recurring weekly class. Concrete
// sessions are projected from it and are never stored on their own.
type ClassTemplate struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID       primitive.ObjectID `bson:"trainerId" json:"trainerId"` // Owner; only they may edit
	Name            string             `bson:"name" json:"name" validate:"required,max=120"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty" validate:"max=2000"`
	Day             string             `bson:"day" json:"day" validate:"required,weekday"` // e.g. "Monday" or "mon"
	StartTime       string             `bson:"startTime" json:"startTime" validate:"required,datetime=15:04"`
	EndTime         string             `bson:"endTime" json:"endTime" validate:"required,datetime=15:04"`
	DurationMinutes int                `bson:"durationMinutes" json:"durationMinutes" validate:"gt=0,lte=1440"`
	Capacity        int                `bson:"capacity" json:"capacity" validate:"gt=0"`
	Price           float64            `bson:"price" json:"price" validate:"gte=0"`
	CoverImageKey   string             `bson:"coverImageKey,omitempty" json:"-"` // Object key in S3, internal use
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full English weekday names or their three-letter
// abbreviations, case-insensitively.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	if d, ok := weekdayNames[s]; ok {
		return d, true
	}
	if len(s) == 3 {
		for name, d := range weekdayNames {
			if name[:3] == s {
				return d, true
			}
		}
	}
	return 0, false
}

// Weekday returns the template's parsed day.
func (t *ClassTemplate) Weekday() (time.Weekday, bool) {
	return ParseWeekday(t.Day)
}
