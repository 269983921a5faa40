package authclient

import (
	"net/url"
	"strings"
)

// LoginLocation builds the login entry point with the return path attached as
// a query parameter. Slashes in the return path are kept readable.
func LoginLocation(loginPath, param, returnPath string) string {
	if returnPath == "" {
		return loginPath
	}
	if param == "" {
		param = "redirect"
	}
	value := strings.ReplaceAll(url.QueryEscape(returnPath), "%2F", "/")
	return loginPath + "?" + url.QueryEscape(param) + "=" + value
}

// RedirectTarget extracts the return path from a login location query, falling
// back to def when it is missing or points outside the application.
func RedirectTarget(rawQuery, param, def string) string {
	if param == "" {
		param = "redirect"
	}
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return def
	}
	target := values.Get(param)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return def
	}
	return target
}

// pathOf strips query and fragment from a location.
func pathOf(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	if location == "" {
		return "/"
	}
	return location
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(pathOf(a), "/") == strings.TrimSuffix(pathOf(b), "/")
}
