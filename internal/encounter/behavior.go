package encounter

import "time"

// Behavior is the per-phase logic a script plugs into a Controller.
type Behavior interface {
	OnEnter(c *Controller)
	OnTick(c *Controller, delta time.Duration)
	OnExit(c *Controller)
}

// BehaviorFuncs builds a Behavior from optional functions.
type BehaviorFuncs struct {
	Enter func(c *Controller)
	Tick  func(c *Controller, delta time.Duration)
	Exit  func(c *Controller)
}

func (b BehaviorFuncs) OnEnter(c *Controller) {
	if b.Enter != nil {
		b.Enter(c)
	}
}

func (b BehaviorFuncs) OnTick(c *Controller, delta time.Duration) {
	if b.Tick != nil {
		b.Tick(c, delta)
	}
}

func (b BehaviorFuncs) OnExit(c *Controller) {
	if b.Exit != nil {
		b.Exit(c)
	}
}

// AbilityHandler performs a cooldown's ability. Returning false keeps the timer expired
// so the attempt is repeated on the next tick.
type AbilityHandler func(c *Controller, def CooldownDef) bool

// Hooks are lifecycle callbacks. All are optional.
type Hooks struct {
	OnReset    func(c *Controller)
	OnEngage   func(c *Controller)
	OnComplete func(c *Controller)
	OnFail     func(c *Controller)
	// OnStep runs ActionHook steps, keyed by Step.Tag.
	OnStep func(c *Controller, step Step)
}
