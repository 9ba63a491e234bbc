package vulkan

import "github.com/spaghettifunk/texture-renderer/engine/core"

type release struct {
	name string
	fn   func()
}

// releaseStack records how to destroy what was created, and destroys it in reverse order.
type releaseStack struct {
	entries []release
}

func (s *releaseStack) push(name string, fn func()) {
	s.entries = append(s.entries, release{name: name, fn: fn})
}

// unwind pops and runs every entry, last pushed first.
func (s *releaseStack) unwind() {
	for i := len(s.entries) - 1; i >= 0; i-- {
		core.LogDebug("releasing %s", s.entries[i].name)
		s.entries[i].fn()
	}
	s.entries = s.entries[:0]
}

func (s *releaseStack) Len() int {
	return len(s.entries)
}
