package game

import "log"

// damageable reports whether a projectile can affect this entity at all.
// Exempt entities are not damageable: projectiles pass through them
// without being consumed, so an exempt entity can never shield another.
func damageable(ent *Entity) bool {
	if !ent.Live() || ent.Exempt {
		return false
	}
	switch ent.Kind {
	case KindHostile, KindBoss, KindMiniHostile, KindChaser:
		return true
	default:
		return false
	}
}

// stepCombat resolves projectile hits for the tick. Each projectile hits
// at most one entity per tick; when several overlap, the lowest handle
// wins so resolution is deterministic regardless of grid iteration order.
func (e *Engine) stepCombat() {
	var expired []Handle

	e.store.ForEach(func(proj *Entity) {
		if proj.Kind != KindProjectile || !proj.Live() {
			return
		}
		if proj.Life <= 0 {
			expired = append(expired, proj.Handle)
			return
		}

		target := e.findTarget(proj)
		if target == nil {
			return
		}

		e.applyDamage(target, proj.Damage)
		expired = append(expired, proj.Handle)
	})

	for _, h := range expired {
		e.despawn(h)
	}
}

// findTarget returns the overlapping damageable entity with the lowest
// handle, or nil.
func (e *Engine) findTarget(proj *Entity) *Entity {
	keys := e.grid.QueryRegion(
		proj.X-proj.HalfW, proj.Y-proj.HalfH,
		proj.X+proj.HalfW, proj.Y+proj.HalfH)

	var best *Entity
	for _, key := range keys {
		h := HandleFromKey(key)
		ent := e.store.Get(h)
		if ent == nil || ent == proj || !damageable(ent) {
			continue
		}
		if !overlaps(proj, ent) {
			continue
		}
		if best == nil || ent.Handle.Before(best.Handle) {
			best = ent
		}
	}
	return best
}

// applyDamage deducts scaled damage and triggers elimination when HP
// reaches zero. Damage against an already eliminated entity is discarded.
func (e *Engine) applyDamage(ent *Entity, base int) {
	if ent.Eliminated {
		return
	}

	dmg := base
	if e.arcade.Running() {
		dmg = int(float64(base) * e.arcade.Multiplier())
	}
	if dmg < 1 {
		dmg = 1
	}

	prevHP := ent.HP
	ent.HP -= dmg
	ent.FlashTimer = 0.15
	e.events.Record(EventDamage, map[string]any{
		"kind":   ent.Kind.String(),
		"amount": dmg,
		"hp":     ent.HP,
	})

	if ent.HP <= 0 {
		ent.HP = 0
		e.eliminate(ent, prevHP)
	}
}

// eliminate runs exactly once per entity life. The entity hides
// immediately; its slot is freed either right away (no remote record) or
// once the remote confirmation arrives. prevHP is the health before the
// killing blow, kept for restore on a failed confirmation. Boss defeats
// resolve their mode transition only after the block call confirms.
func (e *Engine) eliminate(ent *Entity, prevHP int) {
	ent.Eliminated = true
	ent.Hidden = true
	h := ent.Handle

	e.events.Record(EventElimination, map[string]any{
		"kind": ent.Kind.String(),
		"ref":  ent.ExternalRef,
	})
	e.score.Add(ent)

	if e.arcade.Running() {
		// Arcade defers remote effects to commit time. Refless entities
		// (respawned minis) count for score but queue nothing.
		e.arcade.OnElimination(ent)
		if ent.ExternalRef == "" {
			e.despawn(h)
		}
		e.checkHostilesCleared()
		return
	}

	switch ent.Policy {
	case PolicyQuarantine:
		e.trackPending(ent, prevHP)
		e.gateway.Quarantine(ent.ExternalRef, e.scope)
	case PolicyBlock:
		e.trackPending(ent, prevHP)
		e.gateway.Block(ent.ExternalRef, e.scope)
	case PolicyNone:
		e.despawn(h)
	}

	e.checkHostilesCleared()
}

// pendingElim remembers enough state to restore an entity whose remote
// confirmation fails.
type pendingElim struct {
	handle Handle
	prevHP int
}

// trackPending records an in-flight remote elimination. prevHP is the
// health before the killing blow so a failed confirmation restores the
// entity as damaged, not healed.
func (e *Engine) trackPending(ent *Entity, prevHP int) {
	if ent.ExternalRef == "" {
		e.invariant("pending elimination without external ref")
		e.despawn(ent.Handle)
		return
	}
	if prevHP < 1 {
		prevHP = 1
	}
	e.pending[ent.ExternalRef] = pendingElim{handle: ent.Handle, prevHP: prevHP}
}

// resolvePending consumes one quarantine or block completion. Success
// frees the slot; failure restores the entity to its pre-elimination
// state. Stale completions (slot reused since dispatch) are discarded.
func (e *Engine) resolvePending(ref string, err error) {
	pe, ok := e.pending[ref]
	if !ok {
		log.Printf("⚠️ completion for unknown ref %s, discarding", ref)
		return
	}
	delete(e.pending, ref)

	ent := e.store.Get(pe.handle)
	if ent == nil {
		// Slot reused; the generation check already protected it.
		return
	}

	if err == nil {
		wasBoss := ent.Kind == KindBoss
		e.despawn(pe.handle)
		if wasBoss {
			// The boss leaves the board only now that the block call is
			// confirmed, and only now does the battle end.
			e.applyModeEvent(ModeEvent{Kind: EventBossDefeated, Final: e.onFinalScope()})
		}
		return
	}

	log.Printf("⚠️ remote elimination failed for %s, restoring: %v", ref, err)
	ent.Hidden = false
	ent.Eliminated = false
	ent.HP = pe.prevHP
	ent.FlashTimer = 0
	e.events.Record(EventRemoteResult, map[string]any{
		"ref":      ref,
		"ok":       false,
		"restored": true,
	})
}

// checkHostilesCleared fires the clear transition when no live remotely
// backed hostile remains and nothing is pending confirmation. A boss must
// still be standing; once it is confirmed gone the level has no battle
// phase left to enter.
func (e *Engine) checkHostilesCleared() {
	if e.mode.Current() != ModeLevel {
		return
	}
	if len(e.pending) > 0 {
		return
	}
	cleared := true
	bossAlive := false
	e.store.ForEach(func(ent *Entity) {
		switch ent.Kind {
		// Exempt entities cannot be damaged and never count toward a clear.
		case KindHostile, KindMiniHostile:
			if !ent.Exempt && !ent.Eliminated && !ent.Hidden {
				cleared = false
			}
		case KindBoss:
			if !ent.Eliminated {
				bossAlive = true
			}
		}
	})
	if cleared && bossAlive {
		e.applyModeEvent(ModeEvent{Kind: EventHostilesCleared})
	}
}
