// Package queue defines the activity events exchanged over RabbitMQ and the
// consumer that records them.
package queue

import (
	"fmt"
	"strconv"
	"time"
)

// ActivityQueue is the durable queue every diary event goes through.
const ActivityQueue = "theatre.activity"

// Activity kinds.
const (
	PlayCreated    = "play.created"
	PlayUpdated    = "play.updated"
	PlayDeleted    = "play.deleted"
	FramingChanged = "play.framing"
	ReviewPosted   = "review.posted"
	ReviewEdited   = "review.edited"
)

// ActivityEvent is published after a successful write so downstream
// consumers can log or notify without reading the diary database.
type ActivityEvent struct {
	Kind     string `json:"kind"`
	UserID   uint64 `json:"user_id"`
	PlayID   uint64 `json:"play_id"`
	PlayName string `json:"play_name,omitempty"`
	ReviewID uint64 `json:"review_id,omitempty"`
	At       string `json:"at"`
}

// NewActivityEvent stamps an event with the current UTC time.
func NewActivityEvent(kind string, userID, playID uint64, playName string) ActivityEvent {
	return ActivityEvent{
		Kind:     kind,
		UserID:   userID,
		PlayID:   playID,
		PlayName: playName,
		At:       time.Now().UTC().Format(time.RFC3339),
	}
}

// Line renders the event as one line of logs/activity.log.
func (ev ActivityEvent) Line() string {
	s := fmt.Sprintf("[%s] %s | user_id=%d | play_id=%d", ev.At, ev.Kind, ev.UserID, ev.PlayID)
	if ev.PlayName != "" {
		s += " | play=" + strconv.Quote(ev.PlayName)
	}
	if ev.ReviewID != 0 {
		s += fmt.Sprintf(" | review_id=%d", ev.ReviewID)
	}
	return s + "\n"
}
