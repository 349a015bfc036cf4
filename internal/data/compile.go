package data

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/scriptdev/internal/encounter"
	"github.com/udisondev/scriptdev/internal/predicate"
)

// Parse decodes, validates and compiles one definition document.
func Parse(src []byte) (*encounter.Definition, error) {
	var raw rawDefinition
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding definition: %w", err)
	}
	if err := validate.Struct(&raw); err != nil {
		return nil, fmt.Errorf("definition %q: %w", raw.Name, err)
	}
	return compile(&raw)
}

// compile resolves names and builds the immutable definition. Every problem is reported.
func compile(raw *rawDefinition) (*encounter.Definition, error) {
	def := &encounter.Definition{
		Name:        raw.Name,
		ProgressKey: raw.ProgressKey,
		Phases:      make([]encounter.PhaseDef, len(raw.Phases)),
		Sequences:   make(map[encounter.SequenceID]*encounter.Sequence, len(raw.Sequences)),
		Signals:     make(map[string]encounter.SignalID, len(raw.Signals)),
	}

	var errs []error
	fail := func(err error) { errs = append(errs, err) }

	phases := make(map[string]encounter.Phase, len(raw.Phases))
	for i, rp := range raw.Phases {
		id := encounter.Phase(i + 1)
		if _, dup := phases[rp.Name]; dup {
			fail(fmt.Errorf("phase %q declared twice", rp.Name))
		}
		phases[rp.Name] = id
	}
	phase := func(where, name string) encounter.Phase {
		if name == "" {
			return encounter.NoPhase
		}
		p, ok := phases[name]
		if !ok {
			fail(fmt.Errorf("%s: %w: %q", where, encounter.ErrUnknownPhase, name))
		}
		return p
	}
	sequence := func(where, name string) encounter.SequenceID {
		if name == "" {
			return encounter.NoSequence
		}
		if _, ok := raw.Sequences[name]; !ok {
			fail(fmt.Errorf("%s: %w: %q", where, encounter.ErrUnknownSequence, name))
		}
		return encounter.SequenceID(name)
	}

	def.Initial = phase("initial", raw.Initial)

	for i, name := range raw.Signals {
		def.Signals[name] = encounter.SignalID(i + 1)
	}

	for i, rp := range raw.Phases {
		pd := encounter.PhaseDef{
			ID:       encounter.Phase(i + 1),
			Name:     rp.Name,
			Duration: rp.Duration,
			Next:     phase("phase "+rp.Name+" next", rp.Next),
			Enter:    sequence("phase "+rp.Name+" enter", rp.Enter),
		}
		for j, re := range rp.Exits {
			where := fmt.Sprintf("phase %s exit %d", rp.Name, j)
			expr, err := predicate.Compile(re.When)
			if err != nil {
				fail(fmt.Errorf("%s: %w", where, err))
				continue
			}
			pd.Exits = append(pd.Exits, encounter.ExitRule{
				When:     encounter.Expr(expr),
				To:       phase(where, re.To),
				Sequence: sequence(where, re.Sequence),
			})
		}
		def.Phases[i] = pd
	}

	for _, rc := range raw.Cooldowns {
		cd := encounter.CooldownDef{
			Name:    rc.Name,
			Ability: encounter.AbilityID(rc.Ability),
			Initial: rc.Initial,
			Low:     rc.ResetMin,
			High:    rc.ResetMax,
			OneShot: rc.OneShot,
			Target:  rc.Target,
		}
		for _, name := range rc.Phases {
			cd.Phases = append(cd.Phases, phase("cooldown "+rc.Name, name))
		}
		def.Cooldowns = append(def.Cooldowns, cd)
	}

	for name, rs := range raw.Sequences {
		where := "sequence " + name
		seq := &encounter.Sequence{
			ID:    encounter.SequenceID(name),
			Then:  phase(where+" then", rs.Then),
			Steps: make([]encounter.Step, 0, len(rs.Steps)),
		}
		for j, st := range rs.Steps {
			action, err := encounter.ParseStepAction(st.Action)
			if err != nil {
				fail(fmt.Errorf("%s step %d: %w", where, j, err))
				continue
			}
			seq.Steps = append(seq.Steps, encounter.Step{
				Action: action,
				ID:     st.ID,
				Value:  st.Value,
				Target: st.Target,
				Zone:   st.Zone,
				Fade:   st.Fade,
				Phase:  phase(fmt.Sprintf("%s step %d", where, j), st.Phase),
				Tag:    st.Tag,
				Delay:  st.Delay,
			})
		}
		def.Sequences[seq.ID] = seq
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("definition %q: %w", raw.Name, errors.Join(errs...))
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
