package model

import "time"

// User is the subset of the users table the booking core reads.  Accounts
// are created and authenticated elsewhere.
type User struct {
	ID        uint64    // users.id
	Email     string    // users.email
	Name      string    // users.name
	Age       uint8     // users.age
	CreatedAt time.Time // users.created_at
}

// MeetsAgeRestriction reports whether u may watch m.
func (u User) MeetsAgeRestriction(m Movie) bool {
	return u.Age >= m.MinAge
}
