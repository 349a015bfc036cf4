// Package data loads encounter definitions from YAML files.
//
// A definition file looks like
//
//	name: boss_malygos
//	progress_key: 1
//	initial: floor
//	signals: [end_discs, arcane_storm]
//	phases:
//	  - name: floor
//	    exits:
//	      - when: "health < 0.5"
//	        to: transition_1
//	        sequence: end_phase_1
//	cooldowns:
//	  - name: arcane_breath
//	    ability: 56272
//	    initial: 15s
//	    reset_min: 13s
//	    reset_max: 16s
//	    phases: [floor]
//	sequences:
//	  end_phase_1:
//	    steps:
//	      - {action: say, id: -1616011, target: self}
//	      - {action: transition, phase: discs, delay: 22s}
//
// Durations are Go duration strings ("500ms", "10m"). Phases, sequences and signals are
// referenced by name; signal ids follow declaration order starting at 1.
package data

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type rawDefinition struct {
	Name        string                 `yaml:"name" validate:"required"`
	ProgressKey int32                  `yaml:"progress_key" validate:"gte=0"`
	Initial     string                 `yaml:"initial" validate:"required"`
	Signals     []string               `yaml:"signals" validate:"unique,dive,required"`
	Phases      []rawPhase             `yaml:"phases" validate:"required,min=1,max=255,dive"`
	Cooldowns   []rawCooldown          `yaml:"cooldowns" validate:"dive"`
	Sequences   map[string]rawSequence `yaml:"sequences" validate:"dive,keys,required,endkeys"`
}

type rawPhase struct {
	Name     string        `yaml:"name" validate:"required"`
	Duration time.Duration `yaml:"duration" validate:"gte=0"`
	Next     string        `yaml:"next"`
	Enter    string        `yaml:"enter"`
	Exits    []rawExit     `yaml:"exits" validate:"dive"`
}

type rawExit struct {
	When     string `yaml:"when" validate:"required"`
	To       string `yaml:"to" validate:"required"`
	Sequence string `yaml:"sequence"`
}

type rawCooldown struct {
	Name     string        `yaml:"name" validate:"required"`
	Ability  int32         `yaml:"ability" validate:"required"`
	Initial  time.Duration `yaml:"initial" validate:"gte=0"`
	ResetMin time.Duration `yaml:"reset_min" validate:"gte=0"`
	ResetMax time.Duration `yaml:"reset_max" validate:"gtefield=ResetMin"`
	Phases   []string      `yaml:"phases" validate:"dive,required"`
	OneShot  bool          `yaml:"one_shot"`
	Target   string        `yaml:"target"`
}

type rawSequence struct {
	Then  string    `yaml:"then"`
	Steps []rawStep `yaml:"steps" validate:"required,min=1,dive"`
}

type rawStep struct {
	Action string        `yaml:"action" validate:"required,oneof=say broadcast cast environment counter transition hook"`
	ID     int32         `yaml:"id"`
	Value  int32         `yaml:"value"`
	Target string        `yaml:"target"`
	Zone   int32         `yaml:"zone"`
	Fade   time.Duration `yaml:"fade" validate:"gte=0"`
	Phase  string        `yaml:"phase" validate:"required_if=Action transition"`
	Tag    string        `yaml:"tag" validate:"required_if=Action hook"`
	Delay  time.Duration `yaml:"delay" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())
