package parent

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachment-api/internal/domain/attachment"
)

func TestParentExists(t *testing.T) {
	tests := []struct {
		name       string
		parentType attachment.ParentType
		query      string
		exists     bool
	}{
		{"incident present", attachment.ParentIncident, "FROM incidents", true},
		{"incident absent", attachment.ParentIncident, "FROM incidents", false},
		{"comment present", attachment.ParentComment, "FROM comments", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			id := uuid.New()
			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(id.String()).
				WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			got, err := NewRepository(mock).ParentExists(context.Background(), tt.parentType, id)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, got)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestParentExists_UnknownType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRepository(mock).ParentExists(context.Background(), "user", uuid.New())
	require.Error(t, err)
}
