package types

// Policy maps visibility policy keys to whether the governed fields are shown
// to other viewers. Absent keys read as false.
type Policy struct {
	flags map[string]bool
}

func NewPolicy(flags map[string]bool) Policy {
	copied := make(map[string]bool, len(flags))
	for k, v := range flags {
		copied[k] = v
	}
	return Policy{flags: copied}
}

func (p Policy) Enabled(key string) bool {
	return p.flags[key]
}

func (p Policy) With(key string, enabled bool) Policy {
	next := make(map[string]bool, len(p.flags)+1)
	for k, v := range p.flags {
		next[k] = v
	}
	next[key] = enabled
	return Policy{flags: next}
}

func (p Policy) Flags() map[string]bool {
	out := make(map[string]bool, len(p.flags))
	for k, v := range p.flags {
		out[k] = v
	}
	return out
}

func (p Policy) Equal(o Policy) bool {
	if len(p.flags) != len(o.flags) {
		return false
	}
	for k, v := range p.flags {
		if ov, ok := o.flags[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
