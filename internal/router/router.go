// Package router picks which session should serve a given request. The
// algorithm is deliberately the least-loaded policy, frozen as the
// intended end state for this gateway: pick the idlest session that can
// currently see the file, relaxing blindness before blacklisting when
// nothing is fully usable, and falling back unconditionally to session 0
// only when every session is blacklisted, so a burst of failures never
// wedges the gateway entirely.
package router

import "github.com/arisuwu/telestream/internal/ledger"

// Select picks a session ID from entries for messageID. The bool return is
// false only when entries is empty (no sessions running at all). Ties in
// workload go to the lowest session ID.
func Select(entries []ledger.Entry) (int, bool) {
	if len(entries) == 0 {
		return 0, false
	}

	var (
		best      ledger.Entry
		haveBest  bool
		anyUsable bool
	)
	for _, e := range entries {
		if e.Blacklisted || e.Blind {
			continue
		}
		anyUsable = true
		if !haveBest || e.Workload < best.Workload || (e.Workload == best.Workload && e.ID < best.ID) {
			best = e
			haveBest = true
		}
	}
	if anyUsable {
		return best.ID, true
	}

	// Nothing is fully usable: fall back to the least-loaded session that
	// isn't blacklisted, ignoring blindness — propagation delay resolves
	// itself, a cool-off period doesn't.
	haveBest = false
	for _, e := range entries {
		if e.Blacklisted {
			continue
		}
		if !haveBest || e.Workload < best.Workload || (e.Workload == best.Workload && e.ID < best.ID) {
			best = e
			haveBest = true
		}
	}
	if haveBest {
		return best.ID, true
	}

	// Every session is blacklisted: hard fallback to session 0, matching
	// select_optimal_client's unconditional `return 0, get_streamer(0)`.
	return 0, true
}

// Exclude filters ids out of entries, used when the caller already tried
// a session and needs a different one for fallback.
func Exclude(entries []ledger.Entry, ids ...int) []ledger.Entry {
	if len(ids) == 0 {
		return entries
	}
	skip := make(map[int]bool, len(ids))
	for _, id := range ids {
		skip[id] = true
	}
	out := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if !skip[e.ID] {
			out = append(out, e)
		}
	}
	return out
}
