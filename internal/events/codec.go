package events

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/pavelanni/mediarec/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeLearningContext decodes and validates a session-completed payload.
func DecodeLearningContext(payload []byte) (model.LearningContext, error) {
	var lc model.LearningContext
	if err := json.Unmarshal(payload, &lc); err != nil {
		return lc, fmt.Errorf("decode learning context: %w", err)
	}
	if err := validate.Struct(lc); err != nil {
		return lc, fmt.Errorf("validate learning context: %w", err)
	}
	return lc, nil
}

// EncodeEvent serializes an outbound notification.
func EncodeEvent(ev model.RecommendationCreatedEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.EventType, err)
	}
	return data, nil
}
