package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "short_positions", []string{"date", "position_size"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"short_positions"}, []string{"date", "position_size"}).WillReturnResult(3)

	rows := [][]any{{"2024-01-02", 1.2}, {"2024-01-03", 0.8}, {"2024-01-04", 0.6}}
	n, err := CopyFrom(context.Background(), mock, "short_positions", []string{"date", "position_size"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"short_positions"}, []string{"date"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "short_positions", []string{"date"}, [][]any{{"2024-01-02"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO short_positions")
	assert.NoError(t, mock.ExpectationsWereMet())
}
