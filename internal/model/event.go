package model

import "time"

// EventRecommendationCreated is the eventType of every outbound notification.
const EventRecommendationCreated = "RECOMMENDATION_CREATED"

// RecommendationCreatedEvent announces a persisted batch.
type RecommendationCreatedEvent struct {
	EventType          string             `json:"eventType"`
	UserID             string             `json:"userId"`
	RecommendationID   string             `json:"recommendationId"`
	RecommendationIDs  []string           `json:"recommendationIds"`
	RecommendationType RecommendationKind `json:"recommendationType"`
	MediaCount         int                `json:"mediaCount"`
	Genres             []string           `json:"genres,omitempty"`
	SessionID          string             `json:"sessionId,omitempty"`
	Timestamp          time.Time          `json:"timestamp"`
}

// NewRecommendationCreatedEvent summarizes a batch. The batch must share one owner and kind.
func NewRecommendationCreatedEvent(recs []MediaRecommendation, genres []string, now time.Time) RecommendationCreatedEvent {
	ev := RecommendationCreatedEvent{
		EventType:  EventRecommendationCreated,
		MediaCount: len(recs),
		Genres:     genres,
		Timestamp:  now,
	}
	for i, r := range recs {
		if i == 0 {
			ev.UserID = r.UserID
			ev.RecommendationID = r.RecommendationID
			ev.RecommendationType = r.Kind
			if r.SessionID != nil {
				ev.SessionID = *r.SessionID
			}
		}
		ev.RecommendationIDs = append(ev.RecommendationIDs, r.RecommendationID)
	}
	return ev
}
