package sim

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/scriptdev/internal/encounter"
)

var (
	ErrAmbiguousAction = errors.New("scenario action must do exactly one thing")
	ErrUnknownSignal   = errors.New("scenario names an undeclared signal")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Action is one timed scenario step. Exactly one of the action fields is set.
type Action struct {
	At time.Duration `yaml:"at" validate:"gte=0"`

	Engage bool `yaml:"engage"`
	Evade  bool `yaml:"evade"`
	// Health sets the scripted unit's health fraction.
	Health *float64 `yaml:"health" validate:"omitempty,gte=0,lte=1"`

	Signal  string `yaml:"signal"`
	Invoker uint32 `yaml:"invoker"`
	Value   int64  `yaml:"value"`

	Killed int32  `yaml:"killed"` // creature entry
	Killer uint32 `yaml:"killer"`

	SpellHit    int32  `yaml:"spell_hit"`
	Caster      uint32 `yaml:"caster"`
	CasterEntry int32  `yaml:"caster_entry"`

	Area int32  `yaml:"area"`
	Who  uint32 `yaml:"who"`
}

func (a Action) kinds() int {
	n := 0
	for _, set := range []bool{
		a.Engage, a.Evade, a.Health != nil, a.Signal != "", a.Killed != 0, a.SpellHit != 0, a.Area != 0,
	} {
		if set {
			n++
		}
	}
	return n
}

// Event returns the host event the action reports, or nil for actions that drive the
// scripted unit directly.
func (a Action) Event(def *encounter.Definition) (encounter.Event, error) {
	switch {
	case a.Signal != "":
		id, err := def.Signal(a.Signal)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSignal, a.Signal)
		}
		return encounter.Signal{ID: id, Invoker: encounter.Ref(a.Invoker), Value: a.Value}, nil
	case a.Killed != 0:
		return encounter.UnitKilled{Entry: a.Killed, Killer: encounter.Ref(a.Killer)}, nil
	case a.SpellHit != 0:
		return encounter.SpellHit{
			Spell:       encounter.AbilityID(a.SpellHit),
			Caster:      encounter.Ref(a.Caster),
			CasterEntry: a.CasterEntry,
		}, nil
	case a.Area != 0:
		return encounter.AreaEntered{Area: a.Area, Who: encounter.Ref(a.Who)}, nil
	}
	return nil, nil
}

// Scenario is a timeline of actions played against one encounter.
type Scenario struct {
	Encounter string        `yaml:"encounter" validate:"required"`
	Seed      uint64        `yaml:"seed"`
	Duration  time.Duration `yaml:"duration" validate:"gt=0"`
	World     Config        `yaml:"world"`
	Actions   []Action      `yaml:"actions" validate:"dive"`
}

// ParseScenario decodes and validates a scenario document. Actions are ordered by time,
// keeping file order for equal times.
func ParseScenario(src []byte) (*Scenario, error) {
	s := &Scenario{World: DefaultConfig()}
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Encounter, err)
	}
	var errs []error
	for i, a := range s.Actions {
		if a.kinds() != 1 {
			errs = append(errs, fmt.Errorf("action %d at %s: %w", i, a.At, ErrAmbiguousAction))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.SortStableFunc(s.Actions, func(a, b Action) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		}
		return 0
	})
	return s, nil
}

// Check resolves every signal name against def.
func (s *Scenario) Check(def *encounter.Definition) error {
	var errs []error
	for i, a := range s.Actions {
		if _, err := a.Event(def); err != nil {
			errs = append(errs, fmt.Errorf("action %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
