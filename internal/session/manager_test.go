package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateGetDelete(t *testing.T) {
	m := NewManager(time.Hour, Options{Opener: &fakeOpener{auto: true}})

	s := m.Create()
	require.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, _ = s.AddFiles(pdfCandidates("a.pdf"))
	m.Delete(s.ID)

	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Empty(t, s.Documents())
	_, err := s.AddFiles(pdfCandidates("b.pdf"))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestManager_IdleSessionsExpire(t *testing.T) {
	m := NewManager(50*time.Millisecond, Options{Opener: &fakeOpener{auto: true}})
	s := m.Create()

	time.Sleep(80 * time.Millisecond)
	_, ok := m.Get(s.ID)
	assert.False(t, ok)
}

func TestManager_ClosedSessionIsNotFound(t *testing.T) {
	m := NewManager(time.Hour, Options{Opener: &fakeOpener{auto: true}})
	s := m.Create()

	// Closed while still registered, as when eviction races a lookup.
	s.Close()

	_, ok := m.Get(s.ID)
	assert.False(t, ok)
}

func TestManager_GetDoesNotResurrectEvicted(t *testing.T) {
	m := NewManager(time.Hour, Options{Opener: &fakeOpener{auto: true}})
	s := m.Create()

	m.Delete(s.ID)
	_, ok := m.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

func TestManager_GetRefreshesExpiry(t *testing.T) {
	m := NewManager(200*time.Millisecond, Options{Opener: &fakeOpener{auto: true}})
	s := m.Create()

	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		_, ok := m.Get(s.ID)
		require.True(t, ok, "lookup %d", i)
	}
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManager(time.Hour, Options{Opener: &fakeOpener{auto: true}})
	a := m.Create()
	b := m.Create()

	m.Shutdown()

	assert.Equal(t, 0, m.Count())
	for _, s := range []*Session{a, b} {
		_, err := s.AddFiles(pdfCandidates("x.pdf"))
		assert.ErrorIs(t, err, ErrSessionClosed)
	}
}
