package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const DownloadRoute = "/api/v1/attachments/download"

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrExpired          = fmt.Errorf("%w: signed URL has expired", ErrUnauthorized)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthorized)
)

// Signer creates and verifies HMAC-SHA256 signed download URLs. The URL
// carries the storage path and expiry; nothing is kept server side.
type Signer struct {
	key     []byte
	baseURL string
	now     func() time.Time
}

func New(secret, publicBaseURL string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if _, err := url.Parse(publicBaseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("attachment-download-url"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	return &Signer{
		key:     key,
		baseURL: strings.TrimRight(publicBaseURL, "/") + DownloadRoute,
		now:     time.Now,
	}, nil
}

func (s *Signer) sign(storagePath string, expiresUnix int64) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(storagePath))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expiresUnix, 10)))
	return mac.Sum(nil)
}

// SignedURL builds a download URL valid for ttl.
func (s *Signer) SignedURL(storagePath string, ttl time.Duration) (string, time.Time, error) {
	if storagePath == "" {
		return "", time.Time{}, errors.New("storage path is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, errors.New("ttl must be positive")
	}
	expires := s.now().Add(ttl).Truncate(time.Second)

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parsing base URL: %w", err)
	}
	q := u.Query()
	q.Set("path", storagePath)
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	q.Set("sig", hex.EncodeToString(s.sign(storagePath, expires.Unix())))
	u.RawQuery = q.Encode()

	return u.String(), expires, nil
}

// Verify checks the signature in constant time and then the expiry. Both
// query values must be in the exact form SignedURL emits: a canonical
// decimal expiry and a lowercase hex signature. Every failure wraps
// ErrUnauthorized.
func (s *Signer) Verify(storagePath, expires, sig string) error {
	expiresUnix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || storagePath == "" || strconv.FormatInt(expiresUnix, 10) != expires {
		return ErrInvalidSignature
	}

	want := hex.EncodeToString(s.sign(storagePath, expiresUnix))
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > expiresUnix {
		return ErrExpired
	}
	return nil
}
