package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimart/unimart/pkg/models"
)

func TestStaticProviderCurrentPrincipal(t *testing.T) {
	ctx := context.Background()

	p := NewStaticProvider(nil)
	_, err := p.CurrentPrincipal(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)

	p.SignIn(Principal{UID: "uid-1", Email: "alice@uni.edu", Role: models.RoleCustomer})
	got, err := p.CurrentPrincipal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@uni.edu", got.Email)

	p.SignOut()
	_, err = p.CurrentPrincipal(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestStaticProviderEvents(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider(nil)

	events, cancel, err := p.Events(ctx)
	require.NoError(t, err)
	defer cancel()

	p.SignIn(Principal{UID: "uid-1", Email: "alice@uni.edu"})
	p.SignOut()

	ev := <-events
	require.NotNil(t, ev.Principal)
	assert.Equal(t, "uid-1", ev.Principal.UID)

	ev = <-events
	assert.Nil(t, ev.Principal)
}

func TestStaticProviderEventsCancel(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider(nil)

	events, cancel, err := p.Events(ctx)
	require.NoError(t, err)

	cancel()
	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open, "channel closes on cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Sign-ins after cancel do not panic on the removed watcher.
	p.SignIn(Principal{UID: "uid-2"})
}
