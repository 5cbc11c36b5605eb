package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsKeepOrder(t *testing.T) {
	f := NewFields()
	f.Set("First Name", "Ava")
	f.Set("To", "ava@example.com")
	f.Set("Company", "ACME")
	f.Set("To", "ava@acme.test")

	assert.Equal(t, []string{"First Name", "To", "Company"}, f.Keys())
	assert.Equal(t, "ava@acme.test", f.Get("To"))
	assert.Equal(t, 3, f.Len())
}

func TestFieldsLookupIgnoresCase(t *testing.T) {
	f := NewFields()
	f.Set("First Name", "Ava")

	for _, key := range []string{"First Name", "first name", "FIRST NAME", " first NAME "} {
		v, ok := f.Lookup(key)
		assert.True(t, ok, key)
		assert.Equal(t, "Ava", v, key)
	}
	_, ok := f.Lookup("Last Name")
	assert.False(t, ok)
}

func TestNilFields(t *testing.T) {
	var f *Fields
	assert.Equal(t, "", f.Get("x"))
	assert.Nil(t, f.Keys())
	assert.Equal(t, 0, f.Len())
	_, ok := f.Lookup("x")
	assert.False(t, ok)
}

func TestRecordTransitions(t *testing.T) {
	now := time.Date(2026, 5, 14, 11, 0, 0, 0, time.UTC)

	sent := &Record{Row: 1, Status: StatusPending}
	require.NoError(t, sent.MarkSent(now))
	assert.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	assert.True(t, now.Equal(*sent.SentAt))
	assert.ErrorIs(t, sent.MarkFailed("late"), ErrInvalidTransition)
	assert.Equal(t, StatusSent, sent.Status, "never reverts")

	failed := &Record{Row: 2, Status: StatusPending}
	require.NoError(t, failed.MarkFailed("550 mailbox unavailable"))
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Nil(t, failed.SentAt)
	assert.Equal(t, "550 mailbox unavailable", failed.Diagnostic)
	assert.ErrorIs(t, failed.MarkSent(now), ErrInvalidTransition)
}

func TestTableCount(t *testing.T) {
	tbl := &Table{Records: []*Record{
		{Status: StatusPending}, {Status: StatusSent}, {Status: StatusPending},
	}}
	assert.Equal(t, 2, tbl.Count(StatusPending))
	assert.Equal(t, 1, tbl.Count(StatusSent))
	assert.Equal(t, 0, tbl.Count(StatusFailed))
}
