// Package gauth obtains OAuth2 bearer tokens for Google APIs using the
// service-account JWT grant. It is shared by the sheets and drive
// clients.
package gauth

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const tokenEndpoint = "https://oauth2.googleapis.com/token"

// TokenSource yields a bearer token valid for at least a short while.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ServiceAccount is a TokenSource backed by a Google service account
// key. Tokens are cached until shortly before expiry.
type ServiceAccount struct {
	Email  string
	Scopes []string

	key        *rsa.PrivateKey
	endpoint   string
	httpClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// keyFile mirrors the JSON key file downloaded from the Google console.
type keyFile struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// LoadServiceAccount builds a ServiceAccount from either a JSON key
// file or a base64-encoded PEM private key plus client email, matching
// the two credential shapes the deployment supports.
func LoadServiceAccount(keyFilePath, clientEmail, privateKeyB64 string, scopes []string) (*ServiceAccount, error) {
	var email, pemData string

	switch {
	case keyFilePath != "":
		data, err := os.ReadFile(keyFilePath)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		var kf keyFile
		if err := json.Unmarshal(data, &kf); err != nil {
			return nil, fmt.Errorf("parsing key file: %w", err)
		}
		email, pemData = kf.ClientEmail, kf.PrivateKey
	case privateKeyB64 != "":
		decoded, err := base64.StdEncoding.DecodeString(privateKeyB64)
		if err != nil {
			return nil, fmt.Errorf("decoding private key: %w", err)
		}
		email, pemData = clientEmail, string(decoded)
	default:
		return nil, fmt.Errorf("no service account credentials provided")
	}

	if !strings.Contains(pemData, "BEGIN PRIVATE KEY") && !strings.Contains(pemData, "BEGIN RSA PRIVATE KEY") {
		return nil, fmt.Errorf("private key is not a PEM")
	}
	key, err := parsePrivateKey([]byte(pemData))
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, fmt.Errorf("service account email is empty")
	}

	return &ServiceAccount{
		Email:      email,
		Scopes:     scopes,
		key:        key,
		endpoint:   tokenEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func parsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}

// Token returns a cached bearer token, exchanging a fresh JWT
// assertion when the cache is empty or about to expire.
func (s *ServiceAccount) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Until(s.expires) > time.Minute {
		return s.token, nil
	}

	assertion, err := s.signAssertion(time.Now())
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	s.token = result.AccessToken
	s.expires = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	return s.token, nil
}

// signAssertion builds the RS256-signed JWT claim set for the
// jwt-bearer grant.
func (s *ServiceAccount) signAssertion(now time.Time) (string, error) {
	header := map[string]string{"alg": "RS256", "typ": "JWT"}
	claims := map[string]any{
		"iss":   s.Email,
		"scope": strings.Join(s.Scopes, " "),
		"aud":   s.endpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(base64.RawURLEncoding.EncodeToString(headerJSON))
	buf.WriteByte('.')
	buf.WriteString(base64.RawURLEncoding.EncodeToString(claimsJSON))

	digest := sha256.Sum256(buf.Bytes())
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing assertion: %w", err)
	}

	buf.WriteByte('.')
	buf.WriteString(base64.RawURLEncoding.EncodeToString(sig))
	return buf.String(), nil
}

// Static is a TokenSource returning a fixed token (tests).
type Static string

// Token implements TokenSource.
func (s Static) Token(context.Context) (string, error) { return string(s), nil }
