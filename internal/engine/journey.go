package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/gateway"
	"github.com/brightpath/pulse/internal/logger"
)

// JourneyRecorder records the ordered navigation steps of a visit under its
// own identifier, deliberately decoupled from session bookkeeping: journeys
// feed path and replay analytics and must survive session-tracking failures.
type JourneyRecorder struct {
	gw   gateway.Gateway
	disp *dispatcher
	log  logger.Logger

	id    string
	steps int
}

// NewJourneyRecorder creates an inactive recorder.
func NewJourneyRecorder(gw gateway.Gateway, disp *dispatcher, log logger.Logger) *JourneyRecorder {
	return &JourneyRecorder{gw: gw, disp: disp, log: log}
}

// Start allocates a journey id and registers it as active. Coarse country is
// resolved by the collector from the network address.
func (j *JourneyRecorder) Start(entryPage, deviceType string) {
	j.id = uuid.NewString()
	j.steps = 0

	req := domain.JourneyStartRequest{
		JourneyID:  j.id,
		EntryPage:  entryPage,
		DeviceType: deviceType,
	}

	j.disp.enqueue("start_journey", func(ctx context.Context) error {
		return j.gw.StartJourney(ctx, req)
	})
}

// Step appends one navigation/interaction step and advances the journey's
// exit page and step count. A no-op before Start.
func (j *JourneyRecorder) Step(eventType, page string) {
	if j.id == "" {
		return
	}
	j.steps++

	id := j.id
	req := domain.JourneyStepRequest{
		EventType: eventType,
		Page:      page,
	}

	j.disp.enqueue("record_journey_step", func(ctx context.Context) error {
		return j.gw.RecordJourneyStep(ctx, id, req)
	})
}

// ID returns the active journey id, or "" when no journey has started.
func (j *JourneyRecorder) ID() string {
	return j.id
}

// Steps returns the number of steps recorded so far.
func (j *JourneyRecorder) Steps() int {
	return j.steps
}
