package upstream

import (
	"net/url"
	"strings"
)

// S3Operation classifies an S3-style request by method, path, and query, for
// routing decisions and metrics labels. Returns "Unknown" when no pattern
// matches.
func S3Operation(method, path string, query url.Values) string {
	if _, ok := query["list-type"]; ok {
		return "ListObjectsV2"
	}
	if _, ok := query["uploads"]; ok {
		if method == "POST" {
			return "CreateMultipartUpload"
		}
		return "ListMultipartUploads"
	}

	bucket, key := SplitS3Path(path)
	if bucket == "" {
		return "Unknown"
	}

	switch method {
	case "GET":
		if key == "" || strings.HasSuffix(path, "/") {
			return "ListObjects"
		}
		return "GetObject"
	case "PUT":
		if key == "" {
			return "CreateBucket"
		}
		return "PutObject"
	case "DELETE":
		if key == "" {
			return "DeleteBucket"
		}
		return "DeleteObject"
	case "HEAD":
		if key == "" {
			return "HeadBucket"
		}
		return "HeadObject"
	}
	return "Unknown"
}

// SplitS3Path splits a path-style S3 request path into bucket and object key.
func SplitS3Path(path string) (bucket, key string) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", ""
	}
	bucket, key, _ = strings.Cut(path, "/")
	return bucket, strings.TrimSuffix(key, "/")
}
