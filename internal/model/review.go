package model

import "time"

// Author is the public profile attached to a review.  Both fields are empty
// when the profile could not be loaded.
type Author struct {
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Review is one user's write-up of a play, stored in `reviews`.  Content is
// rich text produced by the client editor and is stored verbatim.
type Review struct {
	ID        uint64    `json:"id"`
	PlayID    uint64    `json:"play_id"`
	UserID    uint64    `json:"user_id"`
	Content   string    `json:"content"`
	Quote     string    `json:"quote"`
	Author    Author    `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
