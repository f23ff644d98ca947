package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkzone/keygate/storage/model"
)

func TestUsersCreateAndAuthenticate(t *testing.T) {
	users := newTestStorage(t).UsersStorage()

	count, err := users.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	u, err := users.Create("alice", "s3cret", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	// The hash never leaves the store.
	assert.Empty(t, u.PasswordHash)

	_, err = users.Create("alice", "other", "")
	var exists model.AlreadyExistsError
	assert.ErrorAs(t, err, &exists)

	got, err := users.Authenticate("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.Authenticate("alice", "wrong")
	assert.Error(t, err)
	_, err = users.Authenticate("bob", "s3cret")
	assert.Error(t, err)
}

func TestUsersSetPasswordAndDisable(t *testing.T) {
	users := newTestStorage(t).UsersStorage()

	_, err := users.Create("alice", "old", "")
	require.NoError(t, err)

	require.NoError(t, users.SetPassword("alice", "new"))
	_, err = users.Authenticate("alice", "old")
	assert.Error(t, err)
	_, err = users.Authenticate("alice", "new")
	assert.NoError(t, err)

	require.NoError(t, users.SetDisabled("alice", true))
	_, err = users.Authenticate("alice", "new")
	assert.Error(t, err)
	require.NoError(t, users.SetDisabled("alice", false))
	_, err = users.Authenticate("alice", "new")
	assert.NoError(t, err)

	var notFound model.NotFoundError
	assert.ErrorAs(t, users.SetPassword("bob", "x"), &notFound)
	assert.ErrorAs(t, users.SetDisabled("bob", true), &notFound)
	assert.ErrorAs(t, users.Delete("bob"), &notFound)
}

func TestUsersListHidesHashes(t *testing.T) {
	users := newTestStorage(t).UsersStorage()

	_, err := users.Create("alice", "pw", "Alice")
	require.NoError(t, err)
	_, err = users.Create("bob", "pw", "Bob")
	require.NoError(t, err)

	list, err := users.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, u := range list {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestUpdateManifestRoundTrip(t *testing.T) {
	kv := newTestStorage(t).KeyValue()

	m, err := GetUpdateManifest(kv)
	require.NoError(t, err)
	assert.Nil(t, m)

	want := UpdateManifest{
		LatestVersion: "2.4.0",
		DownloadURL:   "https://downloads.example.com/smartcopy-2.4.0.exe",
		Notes:         "bugfixes",
	}
	require.NoError(t, SetUpdateManifest(kv, want))

	m, err = GetUpdateManifest(kv)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, want, *m)

	// Publishing again overwrites.
	want.LatestVersion = "2.5.0"
	require.NoError(t, SetUpdateManifest(kv, want))
	m, err = GetUpdateManifest(kv)
	require.NoError(t, err)
	assert.Equal(t, "2.5.0", m.LatestVersion)
}
