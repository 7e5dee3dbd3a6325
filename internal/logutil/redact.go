// Package logutil holds small logging helpers.
package logutil

import "strings"

// RedactEmail masks the local part of an address for log output, keeping
// the domain so operators can still tell accounts apart.
func RedactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return "***" + email[at:]
}
