package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/udisondev/scriptdev/internal/encounter"
)

// TopicOutcome carries OutcomeChanged messages.
const TopicOutcome = "encounter.outcome"

// Metadata keys set on every outcome message.
const (
	metaKeyRun      = "run_id"
	metaKeyInstance = "instance_id"
	metaKeyOutcome  = "outcome"
)

// OutcomeChanged reports a progress value change.
type OutcomeChanged struct {
	RunID      uuid.UUID         `json:"run_id"`
	InstanceID uint32            `json:"instance_id"`
	Key        int32             `json:"key"`
	Previous   encounter.Outcome `json:"previous"`
	Outcome    encounter.Outcome `json:"outcome"`
	At         time.Time         `json:"at"`
}

// NewBus returns an in-memory publisher and subscriber pair for outcome messages.
func NewBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
}

func (t *Tracker) publish(ev OutcomeChanged) {
	if t.pub == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("encode outcome", "instance", ev.InstanceID, "key", ev.Key, "error", err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaKeyRun, ev.RunID.String())
	msg.Metadata.Set(metaKeyInstance, fmt.Sprint(ev.InstanceID))
	msg.Metadata.Set(metaKeyOutcome, ev.Outcome.String())

	if err := t.pub.Publish(TopicOutcome, msg); err != nil {
		slog.Error("publish outcome", "instance", ev.InstanceID, "key", ev.Key, "error", err)
	}
}

// DecodeOutcome reads an OutcomeChanged from a message published by a Tracker.
func DecodeOutcome(msg *message.Message) (OutcomeChanged, error) {
	var ev OutcomeChanged
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return OutcomeChanged{}, fmt.Errorf("decoding outcome message %s: %w", msg.UUID, err)
	}
	return ev, nil
}
