package ports

import "time"

type URLSigner interface {
	SignedURL(storagePath string, ttl time.Duration) (string, time.Time, error)
	Verify(storagePath, expires, sig string) error
}
