package model

import "time"

// BenchStatus represents the moderation state of a bench submission.
type BenchStatus string

const (
	BenchStatusPending  BenchStatus = "pending"
	BenchStatusApproved BenchStatus = "approved"
	BenchStatusRejected BenchStatus = "rejected"
)

// Valid reports whether s is one of the known moderation states.
func (s BenchStatus) Valid() bool {
	switch s {
	case BenchStatusPending, BenchStatusApproved, BenchStatusRejected:
		return true
	}
	return false
}

// Bench is a user-submitted point of interest with moderation status.
// A bench always has at least one photo at creation time; that is enforced
// by the submission workflow, not by storage.
type Bench struct {
	ID           string      `json:"id"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
	Title        string      `json:"title,omitempty"`
	Description  string      `json:"description,omitempty"`
	MainPhotoURL string      `json:"main_photo_url,omitempty"`
	Status       BenchStatus `json:"status"`
	CreatedBy    string      `json:"created_by,omitempty"`
	PhotoURLs    []string    `json:"photo_urls,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// BenchPhoto associates one stored photo with a bench. At most one photo per
// bench carries the main flag; its URL mirrors the bench's MainPhotoURL.
type BenchPhoto struct {
	ID        string    `json:"id"`
	BenchID   string    `json:"bench_id"`
	URL       string    `json:"url"`
	IsMain    bool      `json:"is_main"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile holds the application role record for an authenticated user.
type Profile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the authenticated identity returned by the auth service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// AdminRow is one entry in a moderation review feed.
type AdminRow struct {
	Bench     Bench     `json:"bench"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	PhotoURLs []string  `json:"photo_urls"`
}
