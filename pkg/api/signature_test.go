package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsrelay/opsrelay/pkg/config"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignatureVerifier(t *testing.T) {
	body := []byte(`{"id":"A1","title":"High CPU"}`)
	verifier := NewSignatureVerifier(config.WebhookConfig{
		Secrets: map[string]string{
			"datadog":   "dd-secret",
			"sentry":    "sentry-secret",
			"pagerduty": "pd-secret",
		},
	})

	t.Run("datadog accepts bare hex digest", func(t *testing.T) {
		require.NoError(t, verifier.Verify("datadog", body, signBody("dd-secret", body)))
	})

	t.Run("sentry accepts timestamp-prefixed digest", func(t *testing.T) {
		sig := "1704110400," + signBody("sentry-secret", body)
		require.NoError(t, verifier.Verify("sentry", body, sig))
	})

	t.Run("sentry rejects bare digest", func(t *testing.T) {
		err := verifier.Verify("sentry", body, signBody("sentry-secret", body))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("pagerduty accepts v1-prefixed digest", func(t *testing.T) {
		sig := "v1=" + signBody("pd-secret", body)
		require.NoError(t, verifier.Verify("pagerduty", body, sig))
	})

	t.Run("pagerduty rejects missing version prefix", func(t *testing.T) {
		err := verifier.Verify("pagerduty", body, signBody("pd-secret", body))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		err := verifier.Verify("datadog", body, signBody("wrong-secret", body))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects tampered body", func(t *testing.T) {
		sig := signBody("dd-secret", body)
		err := verifier.Verify("datadog", []byte(`{"id":"A2"}`), sig)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects missing signature", func(t *testing.T) {
		err := verifier.Verify("datadog", body, "")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects source without configured secret", func(t *testing.T) {
		empty := NewSignatureVerifier(config.WebhookConfig{Secrets: map[string]string{}})
		err := empty.Verify("datadog", body, signBody("dd-secret", body))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("skip flag accepts anything", func(t *testing.T) {
		skipping := NewSignatureVerifier(config.WebhookConfig{SkipSignatureVerification: true})
		require.NoError(t, skipping.Verify("datadog", body, ""))
	})
}

func TestSignatureHeader(t *testing.T) {
	assert.Equal(t, "X-Datadog-Signature", SignatureHeader("datadog"))
	assert.Equal(t, "Sentry-Hook-Signature", SignatureHeader("sentry"))
	assert.Equal(t, "X-PagerDuty-Signature", SignatureHeader("pagerduty"))
	assert.Empty(t, SignatureHeader("unknown"))
}
