package model

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire and storage format of a play's date.
const DateLayout = "2006-01-02"

// MaxImages is the number of image slots a play carries.
const MaxImages = 5

// Play is a single visit (past or planned) to a theatre production, as
// stored in the `plays` table.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the record; only used for edit permission checks.
//  Name      – title of the production.
//  Theatre   – venue name, may be empty.
//  Date      – performance date; the zero value means unknown.
//  Rating    – normalized rating (see ParseRating).
//  Images    – up to five image URLs in display order.
//  Framing   – zoom and offset applied to the primary image.
//  Quote     – pull quote shown on cards.
//  Review    – synopsis / long-form notes.
//  Comments  – free text.
type Play struct {
	ID        uint64
	UserID    uint64
	Name      string
	Theatre   string
	Date      time.Time
	Rating    Rating
	Images    ImageSlots
	Framing   ImageFraming
	Quote     string
	Review    string
	Comments  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDate reports whether the play carries a usable date.
func (p *Play) HasDate() bool { return !p.Date.IsZero() }

// DateString formats the date as YYYY-MM-DD or returns "" when unknown.
func (p *Play) DateString() string {
	if !p.HasDate() {
		return ""
	}
	return p.Date.Format(DateLayout)
}

type playJSON struct {
	ID                uint64       `json:"id"`
	UserID            uint64       `json:"user_id"`
	Name              string       `json:"name"`
	Theatre           string       `json:"theatre"`
	Date              *string      `json:"date"`
	Rating            string       `json:"rating"`
	IsStandingOvation bool         `json:"is_standing_ovation"`
	Images            []string     `json:"images"`
	PrimaryImage      string       `json:"primary_image,omitempty"`
	Framing           ImageFraming `json:"framing"`
	Quote             string       `json:"quote,omitempty"`
	Review            string       `json:"review,omitempty"`
	Comments          string       `json:"comments,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// MarshalJSON exposes both rating representations clients know about: the
// raw rating string and the is_standing_ovation flag.
func (p Play) MarshalJSON() ([]byte, error) {
	out := playJSON{
		ID:                p.ID,
		UserID:            p.UserID,
		Name:              p.Name,
		Theatre:           p.Theatre,
		Rating:            p.Rating.Raw(),
		IsStandingOvation: p.Rating.IsStandingOvation(),
		Images:            p.Images.Compact(),
		PrimaryImage:      p.Images.Primary(),
		Framing:           p.Framing,
		Quote:             p.Quote,
		Review:            p.Review,
		Comments:          p.Comments,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.HasDate() {
		d := p.DateString()
		out.Date = &d
	}
	return json.Marshal(out)
}
