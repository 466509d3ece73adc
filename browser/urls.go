package browser

import (
	"strconv"
	"strings"
	"time"
)

// BuildURL joins base and tail and adds a timestamp to the query so that the browser never
// answers from its cache. The timestamp goes before any #fragment.
func BuildURL(base, tail string) string {
	return buildURL(base, tail, time.Now())
}

func buildURL(base, tail string, now time.Time) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(tail, "/")
	fragment := ""
	if i := strings.Index(u, "#"); i >= 0 {
		u, fragment = u[:i], u[i:]
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + strconv.FormatInt(now.UnixMilli(), 10) + fragment
}

// PageURL is the cache-busting URL of a rendered page, such as /pages/coding-rules.
func PageURL(base, pagesPath, page string) string {
	return BuildURL(strings.TrimRight(base, "/")+"/"+strings.Trim(pagesPath, "/"), page)
}
