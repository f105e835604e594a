package services

import (
	"github.com/jacksonlee411/community-portal/modules/profile/domain/fieldmeta"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
)

// PolicyStore reads and flips visibility flags. Like RecordStore it holds no
// state of its own.
type PolicyStore struct {
	registry *fieldmeta.Registry
}

func NewPolicyStore(registry *fieldmeta.Registry) PolicyStore {
	return PolicyStore{registry: registry}
}

// Defaults returns a policy with every key present and disabled.
func (s PolicyStore) Defaults() types.Policy {
	return s.fill(false)
}

// RevealAll is the policy an owner sees their own profile through.
func (s PolicyStore) RevealAll() types.Policy {
	return s.fill(true)
}

func (s PolicyStore) fill(enabled bool) types.Policy {
	keys := s.registry.PolicyKeys()
	flags := make(map[string]bool, len(keys))
	for _, k := range keys {
		flags[k] = enabled
	}
	return types.NewPolicy(flags)
}

func (s PolicyStore) Get(policy types.Policy, key string) (bool, error) {
	if err := s.check(key); err != nil {
		return false, err
	}
	return policy.Enabled(key), nil
}

// Toggle flips exactly one key. The input policy is not modified.
func (s PolicyStore) Toggle(policy types.Policy, key string) (types.Policy, error) {
	if err := s.check(key); err != nil {
		return policy, err
	}
	return policy.With(key, !policy.Enabled(key)), nil
}

func (s PolicyStore) Set(policy types.Policy, key string, enabled bool) (types.Policy, error) {
	if err := s.check(key); err != nil {
		return policy, err
	}
	return policy.With(key, enabled), nil
}

// Load keeps the registry's keys only; absent keys read as disabled.
func (s PolicyStore) Load(flags map[string]bool) types.Policy {
	keys := s.registry.PolicyKeys()
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = flags[k]
	}
	return types.NewPolicy(out)
}

func (s PolicyStore) ToPersistable(policy types.Policy) map[string]bool {
	keys := s.registry.PolicyKeys()
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = policy.Enabled(k)
	}
	return out
}

func (s PolicyStore) check(key string) error {
	if _, ok := s.registry.LookupPolicy(key); !ok {
		return &types.UnknownFieldError{Key: key}
	}
	return nil
}
