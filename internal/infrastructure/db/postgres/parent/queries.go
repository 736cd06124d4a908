package parent

const (
	IncidentExists = `SELECT EXISTS(SELECT 1 FROM incidents WHERE id = $1)`
	CommentExists  = `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`
)
