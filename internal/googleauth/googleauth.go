// Package googleauth builds OAuth-authorized HTTP clients for Drive and Gmail
// from an installed-app client secret and a previously issued token file.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes required by the Drive uploader and Gmail notifier.
const (
	DriveFileScope = "https://www.googleapis.com/auth/drive.file"
	GmailSendScope = "https://www.googleapis.com/auth/gmail.send"
)

// ErrNoCredentials is returned when the client secret or token file is absent.
// Callers treat it as "Google integrations disabled" rather than a failure.
var ErrNoCredentials = errors.New("google credentials not configured")

// tokenFile accepts both the oauth2.Token layout and the authorized-user layout
// written by the Google quickstart tooling ("token" instead of "access_token").
type tokenFile struct {
	AccessToken  string    `json:"access_token"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// Client returns an HTTP client that refreshes the stored token as needed.
// The token file is never written; an interactive consent flow is out of scope.
func Client(ctx context.Context, credentialsFile, tokenPath string, scopes ...string) (*http.Client, error) {
	secret, err := readOptional(credentialsFile)
	if err != nil {
		return nil, err
	}
	conf, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials %s: %w", credentialsFile, err)
	}

	raw, err := readOptional(tokenPath)
	if err != nil {
		return nil, err
	}
	tok, err := ParseToken(raw)
	if err != nil {
		return nil, fmt.Errorf("parse token %s: %w", tokenPath, err)
	}
	return conf.Client(ctx, tok), nil
}

// ParseToken decodes a stored OAuth token.
func ParseToken(raw []byte) (*oauth2.Token, error) {
	var tf tokenFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, err
	}
	access := tf.AccessToken
	if access == "" {
		access = tf.Token
	}
	if access == "" && tf.RefreshToken == "" {
		return nil, fmt.Errorf("token has neither access nor refresh token")
	}
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: tf.RefreshToken,
		TokenType:    tf.TokenType,
		Expiry:       tf.Expiry,
	}, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrNoCredentials
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s missing", ErrNoCredentials, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
