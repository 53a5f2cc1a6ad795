package model

import "time"

// Movie is a title that can be scheduled.  MinAge is the minimum viewer
// age; zero means unrestricted.
type Movie struct {
	ID          uint64    `json:"id"`           // movies.id
	Title       string    `json:"title"`        // movies.title
	MinAge      uint8     `json:"min_age"`      // movies.min_age
	DurationMin uint16    `json:"duration_min"` // movies.duration_min
	CreatedAt   time.Time `json:"created_at"`   // movies.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // movies.updated_at
}
