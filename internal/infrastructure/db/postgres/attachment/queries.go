package attachment

const (
	columns = `
		id::text, parent_type, parent_id::text, file_name, content_type, size_bytes, status,
		storage_path, uploaded_by, has_thumbnail, version, created_at, completed_at`

	InsertAttachment = `
		INSERT INTO attachments (id, parent_type, parent_id, file_name, content_type, status, storage_path, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
		RETURNING` + columns

	SelectAttachmentByID = `
		SELECT` + columns + `
		FROM attachments
		WHERE id = $1`

	SelectAttachmentByStoragePath = `
		SELECT` + columns + `
		FROM attachments
		WHERE storage_path = $1`

	SelectAttachmentsByParent = `
		SELECT` + columns + `
		FROM attachments
		WHERE parent_type = $1 AND parent_id = $2
		ORDER BY created_at, id`

	// CompleteAttachment only matches a pending row at the expected version.
	CompleteAttachment = `
		UPDATE attachments
		SET status = 'completed',
		    content_type = $3,
		    size_bytes = $4,
		    completed_at = $5,
		    version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'pending'
		RETURNING` + columns
)
