package signing

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T, now time.Time) *Signer {
	t.Helper()
	s, err := New("test-secret-key", "http://localhost:8080/")
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func parse(t *testing.T, raw string) (path, expires, sig string) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	return q.Get("path"), q.Get("expires"), q.Get("sig")
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New("", "http://localhost")
	require.Error(t, err)
}

func TestSignedURL_Roundtrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newSigner(t, now)

	raw, expiresAt, err := s.SignedURL("incidents/a/b/photo.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), expiresAt)
	assert.True(t, strings.HasPrefix(raw, "http://localhost:8080/api/v1/attachments/download?"), raw)

	p, exp, sig := parse(t, raw)
	assert.Equal(t, "incidents/a/b/photo.png", p)
	require.NoError(t, s.Verify(p, exp, sig))
}

func TestSignedURL_RejectsBadInput(t *testing.T) {
	s := newSigner(t, time.Now())

	_, _, err := s.SignedURL("", time.Minute)
	require.Error(t, err)
	_, _, err = s.SignedURL("incidents/a/b/x.png", 0)
	require.Error(t, err)
}

func TestVerify_AnyAlteredSignatureCharacter(t *testing.T) {
	s := newSigner(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	raw, _, err := s.SignedURL("incidents/a/b/photo.png", time.Hour)
	require.NoError(t, err)
	p, exp, sig := parse(t, raw)

	for i := range sig {
		alt := byte('0')
		if sig[i] == '0' {
			alt = '1'
		}
		tampered := sig[:i] + string(alt) + sig[i+1:]

		err := s.Verify(p, exp, tampered)
		require.ErrorIs(t, err, ErrInvalidSignature, "position %d", i)
		require.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestVerify_CaseFlippedSignatureCharacter(t *testing.T) {
	s := newSigner(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))

	// sign until the signature holds a hex letter to flip
	var p, exp, sig string
	for i := 0; !strings.ContainsAny(sig, "abcdef"); i++ {
		raw, _, err := s.SignedURL(fmt.Sprintf("incidents/a/b/photo-%d.png", i), time.Hour)
		require.NoError(t, err)
		p, exp, sig = parse(t, raw)
	}

	flipped := 0
	for i := range sig {
		if sig[i] < 'a' || sig[i] > 'f' {
			continue
		}
		tampered := sig[:i] + strings.ToUpper(sig[i:i+1]) + sig[i+1:]
		require.ErrorIs(t, s.Verify(p, exp, tampered), ErrInvalidSignature, "position %d", i)
		flipped++
	}
	require.Positive(t, flipped)

	require.ErrorIs(t, s.Verify(p, exp, strings.ToUpper(sig)), ErrInvalidSignature)
}

func TestVerify_Table(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newSigner(t, now)
	raw, _, err := s.SignedURL("incidents/a/b/photo.png", time.Hour)
	require.NoError(t, err)
	p, exp, sig := parse(t, raw)

	other, err := New("another-secret", "http://localhost:8080")
	require.NoError(t, err)
	other.now = s.now

	tests := []struct {
		name    string
		signer  *Signer
		path    string
		expires string
		sig     string
		want    error
	}{
		{"valid", s, p, exp, sig, nil},
		{"other path", s, "incidents/a/b/other.png", exp, sig, ErrInvalidSignature},
		{"extended expiry", s, p, "9999999999", sig, ErrInvalidSignature},
		{"non numeric expiry", s, p, "soon", sig, ErrInvalidSignature},
		{"non hex signature", s, p, exp, "zz", ErrInvalidSignature},
		{"truncated signature", s, p, exp, sig[:10], ErrInvalidSignature},
		{"empty signature", s, p, exp, "", ErrInvalidSignature},
		{"extra signature character", s, p, exp, sig + "0", ErrInvalidSignature},
		{"signature with non hex tail", s, p, exp, sig[:len(sig)-2] + "zz", ErrInvalidSignature},
		{"plus signed expiry", s, p, "+" + exp, sig, ErrInvalidSignature},
		{"zero padded expiry", s, p, "0" + exp, sig, ErrInvalidSignature},
		{"expiry with spaces", s, p, " " + exp, sig, ErrInvalidSignature},
		{"different secret", other, p, exp, sig, ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.signer.Verify(tt.path, tt.expires, tt.sig)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newSigner(t, now)
	raw, _, err := s.SignedURL("incidents/a/b/photo.png", time.Minute)
	require.NoError(t, err)
	p, exp, sig := parse(t, raw)

	s.now = func() time.Time { return now.Add(59 * time.Second) }
	require.NoError(t, s.Verify(p, exp, sig))

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	err = s.Verify(p, exp, sig)
	require.ErrorIs(t, err, ErrExpired)
	require.ErrorIs(t, err, ErrUnauthorized)
}
