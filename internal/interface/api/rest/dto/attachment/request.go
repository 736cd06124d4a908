package attachment

type (
	StartRequest struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
	}

	// SignedURLRequest leaves TTLMinutes nil to take the configured default.
	SignedURLRequest struct {
		TTLMinutes *int `json:"ttl_minutes"`
	}
)
