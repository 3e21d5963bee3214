package sigv4

import (
	"encoding/hex"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixtures from the AWS SigV4 test suite (get-vanilla) and the signing-key
// derivation example in the AWS docs.
const (
	testSecret    = "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY"
	testAmzDate   = "20150830T123600Z"
	testHost      = "example.amazonaws.com"
	emptySHA256   = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	wantSignature = "5fa00fa31553b73ebf1942676e86291e8372ff2a2260956d9b8aae1d763fbf31"
)

func TestSigningKeyMatchesDocumentedDerivation(t *testing.T) {
	// From the AWS "deriving the signing key" example: secret, 20150830,
	// us-east-1, iam.
	key := SigningKey(testSecret, "20150830", "us-east-1", "iam")
	assert.Equal(t,
		"c4afb1cc5771d871763a393e44b703571b55cc28424d1a5e86da6ed3c154a4b9",
		hex.EncodeToString(key),
	)
}

func TestSignReproducesAWSTestVector(t *testing.T) {
	r := httptest.NewRequest("GET", "http://"+testHost+"/", nil)
	r.Host = testHost
	r.Header.Set(AmzDateHeader, testAmzDate)
	// The vector's payload hash is the empty-body sha256; provide it as the
	// content hash header so the canonical request matches the suite's.
	r.Header.Set(ContentSHA256Header, emptySHA256)
	r.Header.Set("Authorization", exampleAuthHeader)

	auth, err := ParseAuthorization(r)
	require.NoError(t, err)

	got := Sign(r, auth, testSecret)
	assert.Equal(t, wantSignature, got)
	assert.True(t, VerifySignature(auth.Signature, got))
}

func TestSignIsDeterministic(t *testing.T) {
	r := httptest.NewRequest("GET", "http://"+testHost+"/?a=1&b=2", nil)
	r.Host = testHost
	r.Header.Set(AmzDateHeader, testAmzDate)
	r.Header.Set("Authorization", exampleAuthHeader)

	auth, err := ParseAuthorization(r)
	require.NoError(t, err)

	first := Sign(r, auth, testSecret)
	second := Sign(r, auth, testSecret)
	assert.Equal(t, first, second)
}

func TestSignChangesWhenAnySignedInputChanges(t *testing.T) {
	sign := func(target, host, date, secret string) string {
		r := httptest.NewRequest("GET", target, nil)
		r.Host = host
		r.Header.Set(AmzDateHeader, date)
		r.Header.Set("Authorization", exampleAuthHeader)
		auth, err := ParseAuthorization(r)
		require.NoError(t, err)
		return Sign(r, auth, secret)
	}

	baseTarget := "http://" + testHost + "/path?q=1"
	reference := sign(baseTarget, testHost, testAmzDate, testSecret)

	cases := map[string]string{
		"date":                sign(baseTarget, testHost, "20150831T123600Z", testSecret),
		"path":                sign("http://"+testHost+"/other?q=1", testHost, testAmzDate, testSecret),
		"query":               sign("http://"+testHost+"/path?q=2", testHost, testAmzDate, testSecret),
		"signed header value": sign(baseTarget, "other.amazonaws.com", testAmzDate, testSecret),
		"secret":              sign(baseTarget, testHost, testAmzDate, testSecret+"x"),
	}
	for name, got := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, reference, got)
		})
	}
}

func TestVerifySignatureFailsClosed(t *testing.T) {
	if VerifySignature("", "") {
		t.Fatal("two empty signatures must not verify")
	}
	if VerifySignature("abc", "") {
		t.Fatal("empty computed signature must not verify")
	}
	if VerifySignature("", "abc") {
		t.Fatal("empty provided signature must not verify")
	}
	if VerifySignature("abcd", "abce") {
		t.Fatal("differing signatures must not verify")
	}
	if VerifySignature("abc", "abcd") {
		t.Fatal("length mismatch must not verify")
	}
	if !VerifySignature("abcd", "abcd") {
		t.Fatal("identical signatures must verify")
	}
}

func TestStringToSignLayout(t *testing.T) {
	scope := CredentialScope{
		AccessKeyID: "AKIDEXAMPLE",
		Date:        "20150830",
		Region:      "us-east-1",
		Service:     "service",
		Terminator:  "aws4_request",
	}
	sts := StringToSign(testAmzDate, scope, "canonical")
	lines := strings.Split(sts, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, SigningAlgorithm, lines[0])
	assert.Equal(t, testAmzDate, lines[1])
	assert.Equal(t, "20150830/us-east-1/service/aws4_request", lines[2])
	assert.Equal(t, sha256Hex([]byte("canonical")), lines[3])
}
