package fetcher

import "bytes"

type blockMarker struct {
	needle []byte
	kind   string
}

// markers are matched against the lower-cased body
var blockMarkers = []blockMarker{
	{[]byte("/errors/validatecaptcha"), "captcha"},
	{[]byte("<title>robot check</title>"), "robot-check"},
	{[]byte("api-services-support@amazon.com"), "robot-check"},
	{[]byte("captcha-delivery.com"), "captcha"},
	{[]byte("<title>just a moment...</title>"), "challenge"},
	{[]byte("<title>access denied</title>"), "access-denied"},
}

// DetectBlock reports whether body is an anti-bot page served with a success status, and which kind
func DetectBlock(body []byte) (string, bool) {
	lower := bytes.ToLower(body)
	for _, m := range blockMarkers {
		if bytes.Contains(lower, m.needle) {
			return m.kind, true
		}
	}
	return "", false
}
