package signing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"id":"ntf_01","user_id":"237690000001"}`)

	sig, ts := Sign("whsec_secret", payload)
	require.True(t, strings.HasPrefix(sig, "v1="))
	assert.True(t, Verify("whsec_secret", payload, ts, sig))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"amount":100}`)
	sig, ts := Sign("whsec_secret", payload)

	assert.False(t, Verify("whsec_secret", []byte(`{"amount":999}`), ts, sig))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"ntf_01"}`)
	sig, ts := Sign("whsec_secret", payload)

	assert.False(t, Verify("whsec_other", payload, ts, sig))
}

func TestVerifyRejectsShiftedTimestamp(t *testing.T) {
	payload := []byte(`{"id":"ntf_01"}`)
	sig, ts := Sign("whsec_secret", payload)

	assert.False(t, Verify("whsec_secret", payload, ts+1, sig))
}
