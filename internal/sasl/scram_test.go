package sasl

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
)

type scramVector struct {
	name        string
	hash        ScramHash
	clientNonce string
	serverFirst string
	clientFinal string
	serverFinal string
}

var scramVectors = []scramVector{
	{
		name:        "RFC 5802",
		hash:        SHA1,
		clientNonce: "fyko+d2lbbFgONRv9qkxdawL",
		serverFirst: "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096",
		clientFinal: "c=biws,r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,p=v0X8v3Bz2T0CJGbJQyF0X+HI4Ts=",
		serverFinal: "v=rmF9pqV8S7suAoZWja4dJRkFsKQ=",
	},
	{
		name:        "RFC 7677",
		hash:        SHA256,
		clientNonce: "rOprNGfwEbeRWgbNEkqO",
		serverFirst: "r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,s=W22ZaJ0SNY7soEsUEjb6gQ==,i=4096",
		clientFinal: "c=biws,r=rOprNGfwEbeRWgbNEkqO%hvYDpWUa2RaTCAfuxFIlj)hNlF$k0,p=dHzbZapWIk4jUhN+Ute9ytag9zjfMHgsqmmiz7AndVQ=",
		serverFinal: "v=6rriTRBi23WpRR/wtup+mMhUZUn/dB5nLTJRsjl95G4=",
	},
}

func TestScramVectors(t *testing.T) {
	for _, v := range scramVectors {
		t.Run(v.name, func(t *testing.T) {
			cf, err := NewClientFirst(v.hash, "user", "", v.clientNonce)
			require.NoError(t, err)
			assert.Equal(t, "n,,n=user,r="+v.clientNonce, cf.Message())

			sf, err := ParseServerFirst(cf, []byte(v.serverFirst))
			require.NoError(t, err)
			assert.Equal(t, 4096, sf.Iterations())

			final, err := NewClientFinal(v.hash, cf, sf, "pencil")
			require.NoError(t, err)
			assert.Equal(t, v.clientFinal, final.Message())

			// Deterministic for fixed inputs.
			again, err := NewClientFinal(v.hash, cf, sf, "pencil")
			require.NoError(t, err)
			assert.Equal(t, final.Proof(), again.Proof())

			sfin, err := ParseServerFinal(v.hash.Name(), []byte(v.serverFinal))
			require.NoError(t, err)
			assert.NoError(t, VerifyServerFinal(final, sfin))
		})
	}
}

func TestScramServerFirstErrors(t *testing.T) {
	cf, err := NewClientFirst(SHA256, "user", "", "abc")
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  string
		want error
	}{
		{"nonce not extended", "r=abc,s=QSXCR+Q6sek8bf92,i=4096", ErrNonceMismatch},
		{"foreign nonce", "r=xyzdef,s=QSXCR+Q6sek8bf92,i=4096", ErrNonceMismatch},
		{"server error", "e=unknown-user", ErrServerError},
		{"mandatory extension", "m=ext,r=abcdef,s=QSXCR+Q6sek8bf92,i=4096", ErrMalformedChallenge},
		{"missing salt", "r=abcdef,i=4096", ErrMalformedChallenge},
		{"bad salt", "r=abcdef,s=***,i=4096", ErrMalformedChallenge},
		{"zero iterations", "r=abcdef,s=QSXCR+Q6sek8bf92,i=0", ErrMalformedChallenge},
		{"garbage", "hello", ErrMalformedChallenge},
		{"empty", "", ErrMalformedChallenge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseServerFirst(cf, []byte(tt.msg))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, client.ErrSASLVerification)
		})
	}
}

func TestScramServerSignatureMismatch(t *testing.T) {
	v := scramVectors[0]
	cf, err := NewClientFirst(v.hash, "user", "", v.clientNonce)
	require.NoError(t, err)
	sf, err := ParseServerFirst(cf, []byte(v.serverFirst))
	require.NoError(t, err)
	final, err := NewClientFinal(v.hash, cf, sf, "pencil")
	require.NoError(t, err)

	forged := "v=" + base64.StdEncoding.EncodeToString(make([]byte, 20))
	sfin, err := ParseServerFinal(v.hash.Name(), []byte(forged))
	require.NoError(t, err)
	err = VerifyServerFinal(final, sfin)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, client.KindSASLVerification, client.KindOf(err))

	_, err = ParseServerFinal(v.hash.Name(), []byte("e=invalid-proof"))
	assert.ErrorIs(t, err, ErrServerError)
}

func TestScramClientFirstEscaping(t *testing.T) {
	cf, err := NewClientFirst(SHA256, "a=b,c", "admin,x", "n0nce")
	require.NoError(t, err)
	assert.Equal(t, "n=a=3Db=2Cc,r=n0nce", cf.Bare())
	assert.Equal(t, "n,a=admin=2Cx,n=a=3Db=2Cc,r=n0nce", cf.Message())

	sf, err := ParseServerFirst(cf, []byte("r=n0nceSRV,s=QSXCR+Q6sek8bf92,i=1"))
	require.NoError(t, err)
	final, err := NewClientFinal(SHA256, cf, sf, "pw")
	require.NoError(t, err)
	header := base64.StdEncoding.EncodeToString([]byte("n,a=admin=2Cx,"))
	assert.Contains(t, final.Message(), "c="+header+",r=n0nceSRV,p=")
}

func TestScramUsernameIsPrepared(t *testing.T) {
	// Non-ASCII space maps to SP, decomposed characters compose.
	cf, err := NewClientFirst(SHA256, "j\u00a0e\u0301", "", "n0nce")
	require.NoError(t, err)
	assert.Equal(t, "n=j \u00e9,r=n0nce", cf.Bare())

	_, err = NewClientFirst(SHA256, "bell\u0007", "", "n0nce")
	require.Error(t, err)
	assert.Equal(t, client.KindSASLConfiguration, client.KindOf(err))
}

func TestScramConfigurationErrors(t *testing.T) {
	_, err := NewClientFirst(SHA1, "", "", "abc")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.ErrorIs(t, err, client.ErrSASLConfiguration)

	_, err = NewClientFirst(SHA1, "user", "", "")
	assert.ErrorIs(t, err, ErrMissingNonce)

	m := &SCRAM{Hash: SHA512, Username: "user"}
	_, err = m.Step(nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	m = &SCRAM{Hash: ScramHash(9), Username: "user", Password: "pw"}
	_, err = m.Step(nil)
	assert.Equal(t, client.KindSASLConfiguration, client.KindOf(err))
}

func TestScramMechanismServerFinalAsChallenge(t *testing.T) {
	v := scramVectors[1]
	m := NewSCRAMSHA256("user", "pencil")
	m.nonce = func() (string, error) { return v.clientNonce, nil }

	first, err := m.Step(nil)
	require.NoError(t, err)
	assert.Equal(t, "n,,n=user,r="+v.clientNonce, string(first))

	final, err := m.Step([]byte(v.serverFirst))
	require.NoError(t, err)
	assert.Equal(t, v.clientFinal, string(final))

	empty, err := m.Step([]byte(v.serverFinal))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	// Already verified, so a success without creds is fine.
	assert.NoError(t, m.Complete(nil))

	_, err = m.Step([]byte("r=more"))
	assert.ErrorIs(t, err, ErrUnexpectedChallenge)
}

func TestScramMechanismMissingServerFinal(t *testing.T) {
	v := scramVectors[0]
	m := NewSCRAMSHA1("user", "pencil")
	m.nonce = func() (string, error) { return v.clientNonce, nil }
	_, err := m.Step(nil)
	require.NoError(t, err)
	_, err = m.Step([]byte(v.serverFirst))
	require.NoError(t, err)

	err = m.Complete(nil)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.ErrorIs(t, err, client.ErrSASLVerification)
}

func TestScramHashNames(t *testing.T) {
	assert.Equal(t, "SCRAM-SHA-1", NewSCRAMSHA1("u", "p").Name())
	assert.Equal(t, "SCRAM-SHA-256", NewSCRAMSHA256("u", "p").Name())
	assert.Equal(t, "SCRAM-SHA-512", NewSCRAMSHA512("u", "p").Name())
}
