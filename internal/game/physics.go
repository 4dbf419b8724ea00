package game

import "math"

// Platform is one static level surface. Entities land on its top edge when
// falling across it.
type Platform struct {
	X, Y, W, H float64 // Top-left corner and extents
}

// Level is the static geometry entities move through.
type Level struct {
	Platforms []Platform
}

// defaultLevel returns the hub layout: a floor plus three staggered
// platforms sized against the world bounds.
func defaultLevel(worldW, worldH float64) Level {
	return Level{
		Platforms: []Platform{
			{X: 0, Y: worldH - 40, W: worldW, H: 40},
			{X: worldW * 0.1, Y: worldH * 0.72, W: worldW * 0.22, H: 16},
			{X: worldW * 0.42, Y: worldH * 0.55, W: worldW * 0.2, H: 16},
			{X: worldW * 0.7, Y: worldH * 0.7, W: worldW * 0.22, H: 16},
		},
	}
}

// PlayerInput is the latest control state, applied each tick.
type PlayerInput struct {
	MoveX float64 // -1..1 horizontal intent
	Jump  bool
}

// stepPhysics integrates movement for one tick: gravity, platform landing,
// world bounds, hostile steering and projectile flight.
func (e *Engine) stepPhysics(dt float64) {
	player := e.store.Get(e.player)

	e.store.ForEach(func(ent *Entity) {
		if !ent.Live() {
			return
		}

		switch ent.Kind {
		case KindPlayer:
			e.stepPlayer(ent, dt)
		case KindHostile, KindExemptHostile, KindBoss, KindMiniHostile:
			e.stepHostile(ent, player, dt)
		case KindChaser:
			e.stepChaser(ent, dt)
		case KindProjectile:
			// Projectiles ignore gravity; lifetime handles cleanup.
			ent.X += ent.VX * dt
			ent.Y += ent.VY * dt
			ent.Life -= dt
		case KindObjective:
			// Static.
		}

		if ent.FlashTimer > 0 {
			ent.FlashTimer -= dt
			if ent.FlashTimer < 0 {
				ent.FlashTimer = 0
			}
		}
	})
}

// stepPlayer applies input, gravity and landing for the player.
func (e *Engine) stepPlayer(ent *Entity, dt float64) {
	in := e.input
	ent.VX = in.MoveX * e.cfg.Sim.PlayerSpeed
	if in.Jump && ent.Grounded {
		ent.VY = -e.cfg.Sim.PlayerJumpSpeed
		ent.Grounded = false
	}
	e.integrate(ent, dt, true)
}

// stepHostile walks a grounded enemy toward the player along X.
func (e *Engine) stepHostile(ent *Entity, player *Entity, dt float64) {
	speed := e.cfg.Sim.HostileSpeed
	if ent.Kind == KindBoss {
		speed *= 0.6
	}
	if player != nil && player.Live() {
		dx := player.X - ent.X
		if math.Abs(dx) > ent.HalfW {
			if dx > 0 {
				ent.VX = speed
			} else {
				ent.VX = -speed
			}
		} else {
			ent.VX = 0
		}
	} else {
		ent.VX = 0
	}
	e.integrate(ent, dt, true)
}

// stepChaser steers the quest adversary along the flow field toward the
// contested objective.
func (e *Engine) stepChaser(ent *Entity, dt float64) {
	vx, vy := e.flow.Lookup(ent.X, ent.Y)
	ent.VX = float64(vx) * e.cfg.Quest.ChaserSpeed
	ent.VY = float64(vy) * e.cfg.Quest.ChaserSpeed
	ent.X += ent.VX * dt
	ent.Y += ent.VY * dt
	e.clampToWorld(ent)
}

// integrate applies gravity, moves the entity and resolves platform
// landings and world bounds. Landing only triggers when falling and the
// previous bottom edge was above the platform top.
func (e *Engine) integrate(ent *Entity, dt float64, gravity bool) {
	if gravity {
		ent.VY += e.cfg.Sim.Gravity * dt
	}

	prevBottom := ent.Y + ent.HalfH
	ent.X += ent.VX * dt
	ent.Y += ent.VY * dt
	bottom := ent.Y + ent.HalfH

	ent.Grounded = false
	if ent.VY >= 0 {
		for _, p := range e.level.Platforms {
			if ent.X+ent.HalfW < p.X || ent.X-ent.HalfW > p.X+p.W {
				continue
			}
			if prevBottom <= p.Y+0.5 && bottom >= p.Y {
				ent.Y = p.Y - ent.HalfH
				ent.VY = 0
				ent.Grounded = true
				break
			}
		}
	}

	e.clampToWorld(ent)
}

// clampToWorld keeps an entity inside the world bounds.
func (e *Engine) clampToWorld(ent *Entity) {
	if ent.X-ent.HalfW < 0 {
		ent.X = ent.HalfW
	}
	if ent.X+ent.HalfW > e.cfg.Sim.WorldWidth {
		ent.X = e.cfg.Sim.WorldWidth - ent.HalfW
	}
	if ent.Y+ent.HalfH > e.cfg.Sim.WorldHeight {
		ent.Y = e.cfg.Sim.WorldHeight - ent.HalfH
		ent.VY = 0
		ent.Grounded = true
	}
	if ent.Y-ent.HalfH < 0 {
		ent.Y = ent.HalfH
		if ent.VY < 0 {
			ent.VY = 0
		}
	}
}

// overlaps reports AABB intersection between two entities.
func overlaps(a, b *Entity) bool {
	return math.Abs(a.X-b.X) <= a.HalfW+b.HalfW &&
		math.Abs(a.Y-b.Y) <= a.HalfH+b.HalfH
}
