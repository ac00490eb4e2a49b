package relay

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_SupersedesNotDuplicates(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subjectID := uuid.NewString()
	first := &Client{userID: subjectID}
	second := &Client{userID: subjectID}

	req.Nil(registry.Register(subjectID, first))

	// A second connection for the same subject replaces the entry and
	// hands back the superseded one.
	prev := registry.Register(subjectID, second)
	req.Same(first, prev)

	current, ok := registry.Lookup(subjectID)
	req.True(ok)
	req.Same(second, current)
	req.Len(registry.ActiveSubjects(), 1)
}

func TestRegistry_Unregister_IgnoresStaleHandle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subjectID := uuid.NewString()
	old := &Client{userID: subjectID}
	current := &Client{userID: subjectID}

	registry.Register(subjectID, old)
	registry.Register(subjectID, current)

	// The superseded connection's cleanup must not race away the newer
	// registration.
	req.False(registry.Unregister(subjectID, old))
	got, ok := registry.Lookup(subjectID)
	req.True(ok)
	req.Same(current, got)

	req.True(registry.Unregister(subjectID, current))
	_, ok = registry.Lookup(subjectID)
	req.False(ok)
	req.Empty(registry.ActiveSubjects())
}

func TestRegistry_ActiveSubjects(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	a, b := uuid.NewString(), uuid.NewString()
	registry.Register(a, &Client{userID: a})
	registry.Register(b, &Client{userID: b})

	subjects := registry.ActiveSubjects()
	req.Len(subjects, 2)
	req.Contains(subjects, a)
	req.Contains(subjects, b)
}
