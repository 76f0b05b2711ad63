package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autocloudskill/domain/entities"
)

func TestRunStoreAccounts(t *testing.T) {
	store, err := NewRunStore(t.TempDir())
	require.NoError(t, err)

	accounts, err := store.Accounts()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, store.SaveAccount(AccountRecord{
		Email:    "ann@mozmail.com",
		Password: "Secret123!",
	}))
	require.NoError(t, store.SaveAccount(AccountRecord{
		Email:    "bob@mozmail.com",
		Password: "Other456!",
	}))

	accounts, err = store.Accounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.False(t, accounts[0].Confirmed)

	require.NoError(t, store.MarkConfirmed("ann@mozmail.com"))
	accounts, err = store.Accounts()
	require.NoError(t, err)
	assert.True(t, accounts[0].Confirmed)
	assert.False(t, accounts[1].Confirmed)

	err = store.MarkConfirmed("missing@mozmail.com")
	require.Error(t, err)
}

func TestRunStoreHistory(t *testing.T) {
	store, err := NewRunStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.AppendRun(entities.RunResult{
		RunID:   "run-1",
		Success: true,
		State:   entities.StateSuccess,
	}))
	require.NoError(t, store.AppendRun(entities.RunResult{
		RunID:   "run-2",
		Success: false,
		State:   entities.StateError,
		Error:   "navigation failed",
	}))

	history, err := store.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "run-1", history[0].RunID)
	assert.False(t, history[1].Success)
}
