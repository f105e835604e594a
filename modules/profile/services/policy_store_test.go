package services

import (
	"testing"

	"github.com/jacksonlee411/community-portal/modules/profile/domain/fieldmeta"
	"github.com/jacksonlee411/community-portal/modules/profile/domain/types"
	"github.com/stretchr/testify/require"
)

func TestPolicyStore_DefaultsArePrivate(t *testing.T) {
	s := NewPolicyStore(fieldmeta.Default())
	p := s.Defaults()
	for _, key := range fieldmeta.Default().PolicyKeys() {
		on, err := s.Get(p, key)
		require.NoError(t, err)
		require.False(t, on, key)
	}
	on, err := s.Get(types.Policy{}, "showEmail")
	require.NoError(t, err)
	require.False(t, on)
}

func TestPolicyStore_ToggleFlipsExactlyOneKey(t *testing.T) {
	s := NewPolicyStore(fieldmeta.Default())
	before := s.Load(map[string]bool{"showDob": true, "showSiblings": true})

	for _, key := range fieldmeta.Default().PolicyKeys() {
		after, err := s.Toggle(before, key)
		require.NoError(t, err)

		b, a := s.ToPersistable(before), s.ToPersistable(after)
		require.Equal(t, !b[key], a[key], key)
		delete(b, key)
		delete(a, key)
		require.Equal(t, b, a, "complement of %s changed", key)
	}
	require.True(t, before.Enabled("showDob"), "input policy mutated")
}

func TestPolicyStore_ParentsDoNotAffectSiblings(t *testing.T) {
	s := NewPolicyStore(fieldmeta.Default())
	p, err := s.Toggle(s.Defaults(), "showParents")
	require.NoError(t, err)
	require.True(t, p.Enabled("showParents"))
	require.False(t, p.Enabled("showSiblings"))
}

func TestPolicyStore_UnknownKey(t *testing.T) {
	s := NewPolicyStore(fieldmeta.Default())
	p := s.Defaults()

	_, err := s.Get(p, "showShoeSize")
	require.True(t, types.IsUnknownField(err))
	next, err := s.Toggle(p, "showShoeSize")
	require.True(t, types.IsUnknownField(err))
	require.True(t, next.Equal(p))
	_, err = s.Set(p, "emailAddress", true)
	require.True(t, types.IsUnknownField(err), "field keys are not policy keys")
}

func TestPolicyStore_LoadSaveSymmetric(t *testing.T) {
	s := NewPolicyStore(fieldmeta.Default())
	p := s.Load(map[string]bool{"showEmail": true, "retiredKey": true})

	flags := s.ToPersistable(p)
	require.NotContains(t, flags, "retiredKey")
	require.Len(t, flags, len(fieldmeta.Default().PolicyKeys()))
	require.True(t, flags["showEmail"])
	require.True(t, s.Load(flags).Equal(p))

	p, err := s.Set(p, "showEmail", false)
	require.NoError(t, err)
	require.False(t, s.ToPersistable(p)["showEmail"])
}

func TestPolicyStore_RevealAll(t *testing.T) {
	s := NewPolicyStore(fieldmeta.Default())
	for _, on := range s.ToPersistable(s.RevealAll()) {
		require.True(t, on)
	}
}
