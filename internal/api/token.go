package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const checkPaymentAction = "check_payment"

// Tokens issues and verifies anti-forgery tokens for the poll endpoint. A
// token is bound to one order and expires after ttl.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}
}

// Issue returns a token valid for orderID until now+ttl.
func (t *Tokens) Issue(orderID int64) string {
	exp := t.now().Add(t.ttl).Unix()
	return strconv.FormatInt(exp, 36) + "." + t.sign(orderID, exp)
}

// Verify reports whether token was issued for orderID and has not expired.
func (t *Tokens) Verify(orderID int64, token string) bool {
	expPart, sig, ok := strings.Cut(token, ".")
	if !ok || sig == "" {
		return false
	}
	exp, err := strconv.ParseInt(expPart, 36, 64)
	if err != nil || t.now().Unix() >= exp {
		return false
	}
	want := t.sign(orderID, exp)
	return hmac.Equal([]byte(sig), []byte(want))
}

func (t *Tokens) sign(orderID int64, exp int64) string {
	mac := hmac.New(sha256.New, t.secret)
	fmt.Fprintf(mac, "%s|%d|", checkPaymentAction, orderID)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(exp))
	mac.Write(b[:])
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
