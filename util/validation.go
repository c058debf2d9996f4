package util

import "regexp"

// acctNameRE covers RFC 7565 acct usernames: the URI unreserved set plus
// sub-delims. Anything outside it (unicode, spaces, control characters)
// would need percent-encoding and is rejected outright.
var acctNameRE = regexp.MustCompile(`^[A-Za-z0-9\-._~!$&'()*+,;=]+$`)

// IsValidWebFingerUsername reports whether a name can appear verbatim in an
// acct: resource. The reason string is empty for valid names.
func IsValidWebFingerUsername(username string) (bool, string) {
	if username == "" {
		return false, "username must be at least 1 character"
	}
	if !acctNameRE.MatchString(username) {
		return false, "username contains invalid characters, allowed: A-Za-z0-9 -._~!$&'()*+,;="
	}
	return true, ""
}
