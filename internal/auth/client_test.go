package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	profile *Profile
	err     error
}

func (f fakeConnector) AuthCodeURL(state string) string { return "https://example.com/consent?state=" + state }

func (f fakeConnector) Exchange(ctx context.Context, code string) (*Profile, error) {
	return f.profile, f.err
}

func TestOnAuthStateChangedFiresWithCurrentState(t *testing.T) {
	restored := &Profile{UID: "u1", DisplayName: "Ana", PhotoURL: "https://example.com/a.png"}
	c := NewClient(fakeConnector{}, restored)

	var got []*Profile
	unsubscribe := c.OnAuthStateChanged(func(p *Profile) { got = append(got, p) })
	defer unsubscribe()

	require.Len(t, got, 1)
	assert.Equal(t, restored, got[0])
}

func TestSignInWithPopupNotifiesListeners(t *testing.T) {
	p := &Profile{UID: "u2", DisplayName: "Bia", PhotoURL: "https://example.com/b.png"}
	c := NewClient(fakeConnector{profile: p}, nil)

	var got []*Profile
	unsubscribe := c.OnAuthStateChanged(func(p *Profile) { got = append(got, p) })

	signedIn, err := c.SignInWithPopup(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, p, signedIn)
	assert.Equal(t, p, c.CurrentUser())
	require.Len(t, got, 2)
	assert.Nil(t, got[0])
	assert.Equal(t, p, got[1])

	unsubscribe()
	unsubscribe()
	_, err = c.SignInWithPopup(context.Background(), "code")
	require.NoError(t, err)
	assert.Len(t, got, 2, "no calls after unsubscribe")
}

func TestSignInWithPopupErrors(t *testing.T) {
	boom := errors.New("popup closed")
	c := NewClient(fakeConnector{err: boom}, nil)
	_, err := c.SignInWithPopup(context.Background(), "code")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, c.CurrentUser())

	c = NewClient(fakeConnector{}, nil)
	_, err = c.SignInWithPopup(context.Background(), "code")
	assert.ErrorIs(t, err, ErrNoUser)
}
