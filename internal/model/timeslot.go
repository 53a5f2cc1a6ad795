package model

import (
	"errors"
	"strings"
	"time"
)

// TimeSlot is one of the fixed two-hour intervals that partition a day.
// Sessions are scheduled into slots rather than free-form start/end times so
// that "same room, same date, same slot" is an exact equality the database
// can enforce with a unique key.
type TimeSlot string

const (
	Slot0000 TimeSlot = "00:00-02:00"
	Slot0200 TimeSlot = "02:00-04:00"
	Slot0400 TimeSlot = "04:00-06:00"
	Slot0600 TimeSlot = "06:00-08:00"
	Slot0800 TimeSlot = "08:00-10:00"
	Slot1000 TimeSlot = "10:00-12:00"
	Slot1200 TimeSlot = "12:00-14:00"
	Slot1400 TimeSlot = "14:00-16:00"
	Slot1600 TimeSlot = "16:00-18:00"
	Slot1800 TimeSlot = "18:00-20:00"
	Slot2000 TimeSlot = "20:00-22:00"
	Slot2200 TimeSlot = "22:00-24:00"
)

// SlotWidth is the fixed length of every TimeSlot.
const SlotWidth = 2 * time.Hour

var timeSlots = []TimeSlot{
	Slot0000, Slot0200, Slot0400, Slot0600, Slot0800, Slot1000,
	Slot1200, Slot1400, Slot1600, Slot1800, Slot2000, Slot2200,
}

// ErrInvalidTimeSlot is returned when a slot label is not one of the
// enumerated intervals.
var ErrInvalidTimeSlot = errors.New("invalid time slot")

// TimeSlots returns every slot of the day in chronological order.
func TimeSlots() []TimeSlot {
	out := make([]TimeSlot, len(timeSlots))
	copy(out, timeSlots)
	return out
}

// ParseTimeSlot validates a slot label such as "14:00-16:00".
func ParseTimeSlot(s string) (TimeSlot, error) {
	slot := TimeSlot(strings.TrimSpace(s))
	if !slot.Valid() {
		return "", ErrInvalidTimeSlot
	}
	return slot, nil
}

// Valid reports whether t is one of the enumerated slots.
func (t TimeSlot) Valid() bool {
	return t.index() >= 0
}

// Start is the offset of the slot start from midnight.
func (t TimeSlot) Start() time.Duration {
	i := t.index()
	if i < 0 {
		return 0
	}
	return time.Duration(i) * SlotWidth
}

// End is the offset of the slot end from midnight.
func (t TimeSlot) End() time.Duration {
	return t.Start() + SlotWidth
}

func (t TimeSlot) String() string { return string(t) }

func (t TimeSlot) index() int {
	for i, s := range timeSlots {
		if s == t {
			return i
		}
	}
	return -1
}

// NormalizeDate discards the time of day, keeping the calendar date as seen
// in t's location, and returns midnight UTC of that date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "2006-01-02" calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeDate(t), nil
}

// DateLayout is the wire and storage format of session dates.
const DateLayout = "2006-01-02"
