package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueConstraintError(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	insert := func(id string) error {
		_, err := store.db.ExecContext(context.Background(), `
			INSERT INTO punches (id, tenant_id, employee_id, local_day, punch_type,
				punched_at, latitude, longitude, captured_at, created_at)
			VALUES (?, 'acme', 'emp-1', '2025-03-10', 'clock_in',
				'2025-03-10T08:00:00Z', 1, 1, '2025-03-10T08:00:00Z', '2025-03-10T08:00:00Z')
		`, id)
		return err
	}

	require.NoError(t, insert("p-1"))

	// GIVEN: Same day and type under a new id
	err = insert("p-2")

	// THEN: The unique index rejects it
	require.Error(t, err)
	assert.True(t, isUniqueConstraintError(err))
	assert.True(t, isUniqueConstraintError(fmt.Errorf("append: %w", err)))

	// Same id again hits the primary key
	assert.True(t, isUniqueConstraintError(insert("p-1")))

	assert.False(t, isUniqueConstraintError(nil))
	assert.False(t, isUniqueConstraintError(errors.New("duplicate key value violates unique constraint")))

	_, err = store.db.ExecContext(context.Background(), `INSERT INTO punches (id) VALUES ('p-3')`)
	require.Error(t, err)
	assert.False(t, isUniqueConstraintError(err), "NOT NULL violations are not races")
}
