// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

package login

// FirstUnusedIDAbove returns the smallest integer >= floor that is not in
// used. It must only be called from the dispatch loop; the single-threaded
// scheduling model is what makes allocation race free.
func FirstUnusedIDAbove(floor int, used map[int]struct{}) int {
	id := floor
	for {
		if _, taken := used[id]; !taken {
			return id
		}
		id++
	}
}
