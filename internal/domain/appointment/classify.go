package appointment

import (
	"bytes"
	"net/http"
	"strings"
)

// Response markers matched against portal bodies. Kept here so the literals
// can change without touching control flow.
const (
	SessionExpiredMarker = "session expired"
	CommitSuccessMarker  = "Successfully Scheduled"
)

// IsSessionExpired reports whether a portal response signals a dead session.
func IsSessionExpired(status int, body []byte) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	return bytes.Contains(bytes.ToLower(body), []byte(SessionExpiredMarker))
}

// IsCommitSuccess reports whether a commit response confirms the new appointment.
func IsCommitSuccess(body []byte) bool {
	return strings.Contains(string(body), CommitSuccessMarker)
}
