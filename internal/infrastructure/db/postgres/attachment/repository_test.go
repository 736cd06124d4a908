package attachment

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "attachment-api/internal/domain/attachment"
)

var cols = []string{
	"id", "parent_type", "parent_id", "file_name", "content_type", "size_bytes", "status",
	"storage_path", "uploaded_by", "has_thumbnail", "version", "created_at", "completed_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func pending(id, parent uuid.UUID, created time.Time) *domain.Attachment {
	return &domain.Attachment{
		ID:          id,
		ParentType:  domain.ParentIncident,
		ParentID:    parent,
		FileName:    "photo.png",
		ContentType: "image/png",
		Status:      domain.StatusPending,
		StoragePath: "incidents/" + parent.String() + "/" + id.String() + "/photo.png",
		UploadedBy:  "user-1",
		CreatedAt:   created,
	}
}

func TestCreateAttachment(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	id, parent := uuid.New(), uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	req := pending(id, parent, created)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attachments")).
		WithArgs(id.String(), "incident", parent.String(), "photo.png", "image/png", req.StoragePath, "user-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			id.String(), "incident", parent.String(), "photo.png", "image/png", nil, "pending",
			req.StoragePath, "user-1", false, 1, created, nil,
		))

	got, err := repo.CreateAttachment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.Size)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, 1, got.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAttachment_DuplicatePath(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	req := pending(uuid.New(), uuid.New(), time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attachments")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.CreateAttachment(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrDuplicateStoragePath)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestFetchAttachment(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	id, parent := uuid.New(), uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := created.Add(time.Minute)
	size := int64(14)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			id.String(), "comment", parent.String(), "a.pdf", "application/pdf", &size, "completed",
			"comments/x/y/a.pdf", "user-2", true, 2, created, &completed,
		))

	got, err := repo.FetchAttachment(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ParentComment, got.ParentType)
	assert.Equal(t, parent, got.ParentID)
	require.NotNil(t, got.Size)
	assert.Equal(t, int64(14), *got.Size)
	assert.True(t, got.IsCompleted())
	assert.True(t, got.HasThumbnail)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, completed, *got.CompletedAt)
}

func TestFetchAttachment_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(id.String()).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.FetchAttachment(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFetchByStoragePath(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	id, parent := uuid.New(), uuid.New()
	p := "incidents/" + parent.String() + "/" + id.String() + "/photo.png"

	mock.ExpectQuery(regexp.QuoteMeta("WHERE storage_path = $1")).
		WithArgs(p).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			id.String(), "incident", parent.String(), "photo.png", "image/png", nil, "pending",
			p, "user-1", false, 1, time.Now(), nil,
		))

	got, err := repo.FetchByStoragePath(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
}

func TestFetchByParent(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)
	parent := uuid.New()
	a, b := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE parent_type = $1 AND parent_id = $2")).
		WithArgs("incident", parent.String()).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(a.String(), "incident", parent.String(), "a.png", "image/png", nil, "pending", "p/a", "u", false, 1, now, nil).
			AddRow(b.String(), "incident", parent.String(), "b.png", "image/png", nil, "pending", "p/b", "u", false, 1, now, nil),
		)

	got, err := repo.FetchByParent(context.Background(), domain.ParentIncident, parent)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
	assert.Equal(t, b, got[1].ID)
}

func TestFetchByParent_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE parent_type")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FetchByParent(context.Background(), domain.ParentIncident, uuid.New())
	require.Error(t, err)
}

func TestMarkCompleted(t *testing.T) {
	id, parent := uuid.New(), uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := created.Add(time.Minute)
	size := int64(14)

	req := pending(id, parent, created)
	req.Size = &size
	req.CompletedAt = &completed
	req.Status = domain.StatusCompleted

	t.Run("swap wins", func(t *testing.T) {
		mock := newMock(t)
		repo := NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta("UPDATE attachments")).
			WithArgs(id.String(), 1, "image/png", &size, &completed).
			WillReturnRows(pgxmock.NewRows(cols).AddRow(
				id.String(), "incident", parent.String(), "photo.png", "image/png", &size, "completed",
				req.StoragePath, "user-1", false, 2, created, &completed,
			))

		got, err := repo.MarkCompleted(context.Background(), req, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
		assert.Equal(t, 2, got.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("swap lost", func(t *testing.T) {
		mock := newMock(t)
		repo := NewRepository(mock)

		mock.ExpectQuery(regexp.QuoteMeta("UPDATE attachments")).
			WithArgs(id.String(), 1, "image/png", &size, &completed).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.MarkCompleted(context.Background(), req, 1)
		require.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	})
}
