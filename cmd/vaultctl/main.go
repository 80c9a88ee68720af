// Command vaultctl is a small command-line client for the vault server.
// The password is prompted, the content key is printed exactly once at
// registration, and vault contents move through stdin/stdout so they
// can be piped.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/voidvault/voidvault-server/internal/client"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "vault server base URL")
	username := flag.String("user", "", "account username (or email)")
	keyString := flag.String("key", "", "content key printed at registration")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	c := client.New(*serverURL)

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "register":
		err = runRegister(ctx, c, *username)
	case "pull":
		err = runPull(ctx, c, *username, *keyString)
	case "push":
		err = runPush(ctx, c, *username, *keyString)
	case "rekey":
		err = runRekey(ctx, c, *username, *keyString)
	case "reset-request":
		err = runResetRequest(ctx, c, *username)
	case "reset-password":
		err = runResetPassword(ctx, c, *username)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vaultctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: vaultctl [-server URL] [-user NAME] [-key KEY] <command>

commands:
  register        create an account; prints the content key once
  pull            decrypt the vault to stdout
  push            encrypt stdin into the vault
  rekey           move the vault to a fresh content key
  reset-request   mail a reset token to the account address
  reset-password  rotate the password using a mailed reset token`)
}

func runRegister(ctx context.Context, c *client.Client, username string) error {
	if username == "" {
		return fmt.Errorf("-user is required")
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	session, err := c.Register(ctx, username, password, []byte("{}"))
	if err != nil {
		return err
	}

	fmt.Println("Account created.")
	fmt.Println("Content key (store it safely, it is shown only once):")
	fmt.Println(vaultcrypt.Encoding.EncodeToString(session.Key[:]))
	fmt.Println("Key fingerprint:", session.Fingerprint)
	return nil
}

func runPull(ctx context.Context, c *client.Client, username, keyString string) error {
	key, err := parseKey(keyString)
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	token, err := c.Login(ctx, username, password, client.IntentLogin)
	if err != nil {
		return err
	}
	plaintext, err := c.Pull(ctx, token, key)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(plaintext)
	return err
}

func runPush(ctx context.Context, c *client.Client, username, keyString string) error {
	key, err := parseKey(keyString)
	if err != nil {
		return err
	}
	plaintext, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	token, err := c.Login(ctx, username, password, client.IntentWrite)
	if err != nil {
		return err
	}
	return c.Push(ctx, token, key, plaintext)
}

func runRekey(ctx context.Context, c *client.Client, username, keyString string) error {
	oldKey, err := parseKey(keyString)
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	resetToken, err := c.Login(ctx, username, password, client.IntentReset)
	if err != nil {
		return err
	}
	newKey, newFingerprint, recovered, err := c.Rekey(ctx, resetToken, oldKey)
	if err != nil {
		return err
	}

	// Re-encrypt the recovered vault under the new key.
	writeToken, err := c.Login(ctx, username, password, client.IntentWrite)
	if err != nil {
		return err
	}
	if err := c.Push(ctx, writeToken, newKey, recovered); err != nil {
		return err
	}

	fmt.Println("Vault moved to a new content key (store it safely, it is shown only once):")
	fmt.Println(vaultcrypt.Encoding.EncodeToString(newKey[:]))
	fmt.Println("Key fingerprint:", newFingerprint)
	return nil
}

func runResetRequest(ctx context.Context, c *client.Client, email string) error {
	if email == "" {
		return fmt.Errorf("-user is required")
	}
	salt, err := c.RequestReset(ctx, email)
	if err != nil {
		return err
	}
	fmt.Println("Reset token sent. Account salt (needed for reset-password):")
	fmt.Println(salt)
	return nil
}

func runResetPassword(ctx context.Context, c *client.Client, email string) error {
	if email == "" {
		return fmt.Errorf("-user is required")
	}
	fmt.Print("Reset token: ")
	var resetToken string
	if _, err := fmt.Scanln(&resetToken); err != nil {
		return fmt.Errorf("failed to read reset token: %w", err)
	}
	fmt.Print("Account salt: ")
	var salt string
	if _, err := fmt.Scanln(&salt); err != nil {
		return fmt.Errorf("failed to read salt: %w", err)
	}
	password, err := promptPassword("New password: ")
	if err != nil {
		return err
	}

	if err := c.ResetPassword(ctx, resetToken, email, password, salt); err != nil {
		return err
	}
	fmt.Println("Password rotated.")
	return nil
}

func parseKey(keyString string) ([vaultcrypt.KeySize]byte, error) {
	var key [vaultcrypt.KeySize]byte
	if keyString == "" {
		return key, fmt.Errorf("-key is required")
	}
	raw, err := vaultcrypt.Encoding.DecodeString(keyString)
	if err != nil || len(raw) != vaultcrypt.KeySize {
		return key, fmt.Errorf("malformed content key")
	}
	copy(key[:], raw)
	return key, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
