package services

import (
	"context"
	"encoding/json"

	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/dkurganov/taskflow/internal/server/models"
)

// publishChange serializes payload and fans the event out to the user's live
// streams. Event delivery is best-effort; a marshalling failure is logged and
// swallowed so it can never fail the mutation that produced it.
func publishChange(ctx context.Context, bus *events.Bus, logger logging.Logger,
	userID string, resource models.ResourceKind, change models.ChangeKind, payload any) {

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error(ctx, "marshalling event payload", "error", err.Error())
		return
	}

	bus.Publish(ctx, models.Event{
		UserID:   userID,
		Resource: resource,
		Change:   change,
		Payload:  raw,
	})
}
