package sigv4

const (
	// SigningAlgorithm is the scheme token at the front of the Authorization header.
	SigningAlgorithm = "AWS4-HMAC-SHA256"

	// AmzDateHeader carries the request timestamp, formatted as TimeFormat.
	AmzDateHeader = "X-Amz-Date"

	// ContentSHA256Header optionally carries the hex sha256 of the request body.
	ContentSHA256Header = "x-amz-content-sha256"

	// UnsignedPayload is the payload-hash marker used when ContentSHA256Header is absent.
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	// TimeFormat is the X-Amz-Date layout.
	TimeFormat = "20060102T150405Z"

	// ShortTimeFormat is the credential-scope date: the first 8 characters of X-Amz-Date.
	ShortTimeFormat = "20060102"

	// scopeTerminator is the fixed last element of a credential scope.
	scopeTerminator = "aws4_request"

	// secretPrefix is prepended to the secret key before key derivation.
	secretPrefix = "AWS4"
)
