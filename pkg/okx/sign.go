package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Timestamp formats t the way the API wants it signed: seconds since the
// epoch with millisecond precision, as a decimal string.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("%d.%03d", t.Unix(), t.Nanosecond()/1e6)
}

// Sign computes the request signature: base64 of an HMAC-SHA256 over
// timestamp + METHOD + path + body with the account secret as key. The
// method is uppercased, and path must include the query string exactly as
// sent on the wire.
func Sign(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
