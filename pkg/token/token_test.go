package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	GenerateSecretKey()
	m.Run()
}

func TestSignAndValidate(t *testing.T) {
	payload := TicketPayload{
		TicketID: "018f4e2a-0000-7000-8000-000000000001",
		CacheID:  "018f4e2a-0000-7000-8000-000000000002",
		UserID:   "018f4e2a-0000-7000-8000-000000000003",
	}

	sig, err := GenerateTicketSignature(payload)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	assert.True(t, ValidateTicketSignature(payload, sig))
}

func TestValidateRejectsTamperedPayload(t *testing.T) {
	payload := TicketPayload{TicketID: "t1", CacheID: "c1", UserID: "u1"}
	sig, err := GenerateTicketSignature(payload)
	require.NoError(t, err)

	tampered := payload
	tampered.CacheID = "c2"
	assert.False(t, ValidateTicketSignature(tampered, sig))

	tampered = payload
	tampered.UserID = "u2"
	assert.False(t, ValidateTicketSignature(tampered, sig))
}

func TestValidateRejectsBadSignature(t *testing.T) {
	payload := TicketPayload{TicketID: "t1", CacheID: "c1", UserID: "u1"}

	assert.False(t, ValidateTicketSignature(payload, ""))
	assert.False(t, ValidateTicketSignature(payload, "not-base64!!!"))
	assert.False(t, ValidateTicketSignature(payload, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
}
