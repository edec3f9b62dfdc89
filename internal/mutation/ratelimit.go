package mutation

import (
	"time"

	"github.com/astra-ventures/pulse/internal/state"
)

// rateLimitStateName is the state file under <state_dir> holding the
// persisted, hour-pruned mutation timestamp list, mirroring
// evolution/guardrails.py's check_mutation_rate/_load_timestamps /
// _save_timestamps persistence.
const rateLimitStateName = "mutation_ratelimit"

// rateLimiter enforces spec.md §4.10/§4.11's cap of at most
// MaxMutationsPerHour self-modifications in any rolling hour. The
// timestamp list survives restarts so a burst just before a crash still
// counts against the cap after recovery.
type rateLimiter struct {
	cap        int
	timestamps []int64 // epoch ms, pruned to the last hour
}

func loadRateLimiter(stateDir string, cap int) *rateLimiter {
	rl := &rateLimiter{cap: cap}
	_ = state.Load(stateDir, rateLimitStateName, &rl.timestamps)
	return rl
}

func (rl *rateLimiter) save(stateDir string) {
	_ = state.Save(stateDir, rateLimitStateName, rl.timestamps)
}

// allow prunes timestamps older than an hour, reports whether another
// mutation may proceed, and — if so — records this attempt immediately,
// matching the source's check-then-append-unconditionally behavior
// (every attempted mutation consumes a slot, whether or not the
// mutation's own kind-specific validation later succeeds).
func (rl *rateLimiter) allow(now time.Time, stateDir string) bool {
	cutoff := now.Add(-time.Hour).UnixMilli()
	pruned := rl.timestamps[:0]
	for _, ts := range rl.timestamps {
		if ts > cutoff {
			pruned = append(pruned, ts)
		}
	}
	rl.timestamps = pruned

	if len(rl.timestamps) >= rl.cap {
		rl.save(stateDir)
		return false
	}
	rl.timestamps = append(rl.timestamps, now.UnixMilli())
	rl.save(stateDir)
	return true
}
