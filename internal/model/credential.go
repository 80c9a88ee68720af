package model

import "time"

// Intent names what a challenge is for. Register provisions a fresh
// credential; the other three operate on an existing one.
type Intent string

const (
	IntentRegister Intent = "register"
	IntentLogin    Intent = "login"
	IntentWrite    Intent = "write"
	IntentReset    Intent = "reset"
)

// ParseIntent validates a wire intent string.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentRegister, IntentLogin, IntentWrite, IntentReset:
		return Intent(s), true
	}
	return "", false
}

// LoginClassIntents are the intents that require an existing credential.
// A proof submission may consume a nonce carrying any of these.
var LoginClassIntents = []Intent{IntentLogin, IntentWrite, IntentReset}

// Credential is the server-side record for one identity. UID is a keyed
// digest of the username computed client-side; the raw username never
// reaches the server. Verifier is either a real proof-verification value
// or a borrowed placeholder while a registration is in flight.
type Credential struct {
	UID       string
	Salt      string
	Verifier  string
	CreatedAt time.Time
}
