package testutil

import "net/http"

// BrowserHeaders sets the headers a desktop browser sends with the
// registration form, including screen and timezone hints.
func BrowserHeaders(req *http.Request) *http.Request {
	req.Header.Set("Accept-Language", "fa-IR,fa;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Sec-CH-UA-Platform", `"Windows"`)
	req.Header.Set("X-Screen-Resolution", "1920x1080")
	req.Header.Set("X-Timezone", "Asia/Tehran")
	return req
}
