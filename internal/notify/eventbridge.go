package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// EventSource is the EventBridge source for every hoopcoach event.
const EventSource = "hoopcoach"

// EventsAPI is the EventBridge call used for publishing. *eventbridge.Client
// satisfies it.
type EventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridge publishes events to a bus.
type EventBridge struct {
	client EventsAPI
	bus    string
}

// NewEventBridge creates a publisher for bus ("default" when empty).
func NewEventBridge(client EventsAPI, bus string) *EventBridge {
	if bus == "" {
		bus = "default"
	}
	return &EventBridge{client: client, bus: bus}
}

func (e *EventBridge) Name() string {
	return "eventbridge"
}

func (e *EventBridge) Notify(ctx context.Context, event Event) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{{
			EventBusName: aws.String(e.bus),
			Source:       aws.String(EventSource),
			DetailType:   aws.String(detailType(event.Type)),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.OccurredAt),
		}},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
		return fmt.Errorf("PutEvents: %d entries failed", result.FailedEntryCount)
	}
	return nil
}

func detailType(eventType string) string {
	switch eventType {
	case EventSessionCompleted:
		return "SessionCompleted"
	case EventSessionFailed:
		return "SessionFailed"
	default:
		return eventType
	}
}
