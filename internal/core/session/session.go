// Package session tracks the persisted operational state of every actor
// identity used to dispatch invitations.
//
// # Purpose
//
// Each actor carries cool-downs, counters and quota windows that must survive
// restarts:
//   - blocked_until / frozen_until: temporary bans imposed after rate limits or abuse flags
//   - next_invite_at: pacing and planned rotation
//   - hour/day windows: successful dispatch quotas
//   - banned: terminal, the actor is never scheduled again
//
// # Key Features
//
// Write-through - Every Update persists the new state before it becomes
// visible in memory, so a crash loses at most the in-flight operation.
//
// Window normalization - Expired quota windows are reset to {now, 0} on Load.
//
// # Quick Start
//
//	tracker := session.NewTracker(sessionRepo, clock.Real{})
//	_ = tracker.Load(ctx, []string{"acc1", "acc2"})
//
//	tracker.Update(ctx, "acc1", func(s *domain.SessionState) {
//	    s.BlockedUntil = now.Add(2 * time.Minute)
//	})
//
//	for _, s := range tracker.States() {
//	    fmt.Println(s.ActorID, s.Readiness())
//	}
package session
