// Package client implements the vault protocol from the caller's side:
// key derivation, challenge/proof exchanges and envelope encryption.
// Passwords and content keys never leave the process; the server only
// sees derived values.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

// ErrRejected is returned for every protocol rejection. The server does
// not say why, and neither does the client.
var ErrRejected = errors.New("request rejected")

// ErrUnauthorized is returned when a bearer token is missing, expired
// or of the wrong scope.
var ErrUnauthorized = errors.New("token rejected")

// Client talks to one vault server.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	identityKey []byte

	paramsMu    sync.Mutex
	params      vaultcrypt.Params
	paramsKnown bool
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithParams pins the argon2id work factors instead of consulting the
// server. Every device of one account must end up with the same
// factors or their verifiers diverge.
func WithParams(params vaultcrypt.Params) Option {
	return func(c *Client) {
		c.params = params
		c.paramsKnown = true
	}
}

// WithIdentityKey sets a pepper for username digests. All devices of
// one account must share it.
func WithIdentityKey(key []byte) Option {
	return func(c *Client) {
		c.identityKey = key
	}
}

// New creates a client for the server at baseURL. Unless WithParams is
// given, the work factors are fetched from the server on first use.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// loadParams returns the derivation work factors, consulting the
// server's params endpoint once and caching the answer.
func (c *Client) loadParams(ctx context.Context) (vaultcrypt.Params, error) {
	c.paramsMu.Lock()
	defer c.paramsMu.Unlock()
	if c.paramsKnown {
		return c.params, nil
	}

	body, err := c.doRaw(ctx, http.MethodGet, "/vault/v1/params", "", nil)
	if err != nil {
		return vaultcrypt.Params{}, fmt.Errorf("failed to fetch derivation parameters: %w", err)
	}
	var res struct {
		Time   uint32 `json:"time"`
		MemKiB uint32 `json:"mem"`
		Par    uint8  `json:"par"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return vaultcrypt.Params{}, fmt.Errorf("failed to decode derivation parameters: %w", err)
	}
	if res.Time == 0 || res.MemKiB == 0 || res.Par == 0 {
		return vaultcrypt.Params{}, errors.New("server advertised zero derivation parameters")
	}

	c.params = vaultcrypt.Params{Time: res.Time, MemKiB: res.MemKiB, Par: res.Par}
	c.paramsKnown = true
	return c.params, nil
}

// Session is the result of a successful registration: the bearer token
// plus the locally generated content key and its fingerprint. The key
// exists nowhere else; losing it means losing the vault.
type Session struct {
	Token       string
	Key         [vaultcrypt.KeySize]byte
	Fingerprint string
}

type challengeResponse struct {
	Salt  string `json:"salt"`
	Nonce string `json:"nonce"`
}

type grantResponse struct {
	Token     string    `json:"token"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates an account and seeds the vault with plaintext
// encrypted under a fresh content key.
func (c *Client) Register(ctx context.Context, username, password string, plaintext []byte) (Session, error) {
	uid, err := vaultcrypt.DeriveIdentity(username, c.identityKey)
	if err != nil {
		return Session{}, err
	}

	var ch challengeResponse
	err = c.doJSON(ctx, http.MethodPost, "/vault/v1/challenge",
		map[string]string{"uid": uid, "intent": "register"}, &ch)
	if err != nil {
		return Session{}, err
	}

	verifier, err := c.deriveVerifier(ctx, uid, password, ch.Salt)
	if err != nil {
		return Session{}, err
	}

	key, fingerprint, err := vaultcrypt.Keygen()
	if err != nil {
		return Session{}, err
	}
	envelope, err := vaultcrypt.Encrypt(plaintext, key)
	if err != nil {
		return Session{}, err
	}

	var reg struct {
		Token string `json:"token"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/vault/v1/register", map[string]string{
		"nonce":       ch.Nonce,
		"verifier":    vaultcrypt.Encoding.EncodeToString(verifier),
		"fingerprint": fingerprint,
		"blob":        envelope,
	}, &reg)
	if err != nil {
		return Session{}, err
	}

	return Session{Token: reg.Token, Key: key, Fingerprint: fingerprint}, nil
}

// Intent selects the capability a login grants.
type Intent string

const (
	IntentLogin Intent = "login"
	IntentWrite Intent = "write"
	IntentReset Intent = "reset"
)

// Login proves possession of the password and returns a scoped bearer
// token.
func (c *Client) Login(ctx context.Context, username, password string, intent Intent) (string, error) {
	uid, err := vaultcrypt.DeriveIdentity(username, c.identityKey)
	if err != nil {
		return "", err
	}

	var ch challengeResponse
	err = c.doJSON(ctx, http.MethodPost, "/vault/v1/challenge",
		map[string]string{"uid": uid, "intent": string(intent)}, &ch)
	if err != nil {
		return "", err
	}

	verifier, err := c.deriveVerifier(ctx, uid, password, ch.Salt)
	if err != nil {
		return "", err
	}
	nonceBytes, err := vaultcrypt.Encoding.DecodeString(ch.Nonce)
	if err != nil {
		return "", fmt.Errorf("failed to decode nonce: %w", err)
	}
	proof := vaultcrypt.ComputeProof(verifier, nonceBytes)

	var grant grantResponse
	err = c.doJSON(ctx, http.MethodPost, "/vault/v1/proof", map[string]string{
		"nonce": ch.Nonce,
		"proof": vaultcrypt.Encoding.EncodeToString(proof),
	}, &grant)
	if err != nil {
		return "", err
	}

	return grant.Token, nil
}

// Pull downloads and decrypts the vault.
func (c *Client) Pull(ctx context.Context, readToken string, key [vaultcrypt.KeySize]byte) ([]byte, error) {
	body, err := c.doRaw(ctx, http.MethodGet, "/vault/v1/data", readToken, nil)
	if err != nil {
		return nil, err
	}
	return vaultcrypt.Decrypt(string(body), key)
}

// Push encrypts and uploads the vault.
func (c *Client) Push(ctx context.Context, writeToken string, key [vaultcrypt.KeySize]byte, plaintext []byte) error {
	envelope, err := vaultcrypt.Encrypt(plaintext, key)
	if err != nil {
		return err
	}
	_, err = c.doRaw(ctx, http.MethodPost, "/vault/v1/data", writeToken, []byte(envelope))
	return err
}

// RequestReset asks the server to mail a reset token to the address and
// returns the account salt for later re-derivation.
func (c *Client) RequestReset(ctx context.Context, email string) (string, error) {
	var res struct {
		Salt string `json:"salt"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/vault/v1/reset/request",
		map[string]string{"uid": email}, &res)
	if err != nil {
		return "", err
	}
	return res.Salt, nil
}

// ResetPassword derives a verifier for the new password under the salt
// returned by RequestReset and rotates the credential.
func (c *Client) ResetPassword(ctx context.Context, resetToken, username, newPassword, salt string) error {
	uid, err := vaultcrypt.DeriveIdentity(username, c.identityKey)
	if err != nil {
		return err
	}
	verifier, err := c.deriveVerifier(ctx, uid, newPassword, salt)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"verifier": vaultcrypt.Encoding.EncodeToString(verifier),
	})
	if err != nil {
		return err
	}
	_, err = c.doRaw(ctx, http.MethodPost, "/vault/v1/reset/password", resetToken, body)
	return err
}

// Rekey moves the vault to a fresh content key: the server returns the
// old ciphertext, which is decrypted with oldKey, re-encrypted under
// the new key and pushed back after a write login. It returns the new
// session material and the recovered plaintext.
func (c *Client) Rekey(ctx context.Context, resetToken string, oldKey [vaultcrypt.KeySize]byte) ([vaultcrypt.KeySize]byte, string, []byte, error) {
	newKey, newFingerprint, err := vaultcrypt.Keygen()
	if err != nil {
		return newKey, "", nil, err
	}
	seed, err := vaultcrypt.Encrypt(nil, newKey)
	if err != nil {
		return newKey, "", nil, err
	}

	body, err := json.Marshal(map[string]string{
		"fingerprint": newFingerprint,
		"blob":        seed,
	})
	if err != nil {
		return newKey, "", nil, err
	}
	oldEnvelope, err := c.doRaw(ctx, http.MethodPost, "/vault/v1/reset/key", resetToken, body)
	if err != nil {
		return newKey, "", nil, err
	}

	plaintext, err := vaultcrypt.Decrypt(string(oldEnvelope), oldKey)
	if err != nil {
		return newKey, "", nil, fmt.Errorf("failed to decrypt recovered vault: %w", err)
	}
	return newKey, newFingerprint, plaintext, nil
}

// deriveVerifier runs the two-stage derivation: password under the
// identity digest, then the result under the server salt.
func (c *Client) deriveVerifier(ctx context.Context, uid, password, serverSalt string) ([]byte, error) {
	params, err := c.loadParams(ctx)
	if err != nil {
		return nil, err
	}
	uidBytes, err := vaultcrypt.Encoding.DecodeString(uid)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	saltBytes, err := vaultcrypt.Encoding.DecodeString(serverSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	material := vaultcrypt.DeriveProofMaterial([]byte(password), uidBytes, params)
	return vaultcrypt.DeriveVerifier(material, saltBytes, params), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path, bearer string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func checkStatus(status int) error {
	switch {
	case status == http.StatusPaymentRequired:
		return ErrRejected
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status >= 400:
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}
