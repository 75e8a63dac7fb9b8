package canonical

import (
	"net/url"
	"regexp"
	"strings"
)

var numericSegment = regexp.MustCompile(`^\d{2,}$`)

// facility id query keys seen on chain sites that do not put the id in the path
var facilityIDParams = []string{"facility_id", "shop_id", "store_id", "id"}

// CanonicalURL lowercases scheme and host, drops the fragment and a trailing
// slash. Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// URLHost is the lowercase host without a leading "www.".
func URLHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// FacilityKey identifies a facility page by its base directory and numeric
// id: "example.com/gyms/tokyo/0123" for both
// https://www.example.com/gyms/tokyo/0123/access and .../0123/?utm=x.
// ok is false when the URL carries no numeric id.
func FacilityKey(raw string) (key string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segs := strings.Split(strings.Trim(strings.ToLower(u.Path), "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if numericSegment.MatchString(segs[i]) {
			return host + "/" + strings.Join(segs[:i+1], "/"), true
		}
	}
	q := u.Query()
	for _, k := range facilityIDParams {
		if v := q.Get(k); numericSegment.MatchString(v) {
			base := strings.Trim(strings.ToLower(u.Path), "/")
			return host + "/" + base + "?" + k + "=" + v, true
		}
	}
	return "", false
}
