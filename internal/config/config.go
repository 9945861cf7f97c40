// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ClientID      string
	ClientSecret  string
	TenantID      string
	RedirectURI   string
	Scopes        []string
	SecretKey     []byte
	GraphBaseURL  string
	ListenAddr    string
	DBPath        string
	InboxPageSize int
	RejectGuests  bool
}

// Load reads configuration from environment variables and returns a validated
// Config. Required: MAILRELAY_CLIENT_ID, MAILRELAY_CLIENT_SECRET,
// MAILRELAY_TENANT_ID, MAILRELAY_REDIRECT_URI, and MAILRELAY_SECRET_KEY
// (base64, exactly 32 bytes once decoded). Optional with defaults:
// MAILRELAY_SCOPES, MAILRELAY_GRAPH_BASE_URL, MAILRELAY_LISTEN_ADDR,
// MAILRELAY_DB_PATH, MAILRELAY_INBOX_PAGE_SIZE, MAILRELAY_REJECT_GUESTS.
func Load() (*Config, error) {
	clientID, err := requireEnv("MAILRELAY_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	clientSecret, err := requireEnv("MAILRELAY_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}
	tenantID, err := requireEnv("MAILRELAY_TENANT_ID")
	if err != nil {
		return nil, err
	}
	redirectURI, err := requireEnv("MAILRELAY_REDIRECT_URI")
	if err != nil {
		return nil, err
	}

	secretKey, err := decodeSecretKey(os.Getenv("MAILRELAY_SECRET_KEY"))
	if err != nil {
		return nil, err
	}

	scopes := []string{"User.Read", "Mail.Read", "offline_access"}
	if v, ok := os.LookupEnv("MAILRELAY_SCOPES"); ok && strings.TrimSpace(v) != "" {
		scopes = strings.Fields(v)
	}

	graphBaseURL := "https://graph.microsoft.com/v1.0"
	if v, ok := os.LookupEnv("MAILRELAY_GRAPH_BASE_URL"); ok && v != "" {
		graphBaseURL = strings.TrimRight(v, "/")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("MAILRELAY_LISTEN_ADDR"); ok && v != "" {
		listenAddr = v
	}

	dbPath := "mailrelay.db"
	if v, ok := os.LookupEnv("MAILRELAY_DB_PATH"); ok && v != "" {
		dbPath = v
	}

	pageSize := 10
	if v, ok := os.LookupEnv("MAILRELAY_INBOX_PAGE_SIZE"); ok && v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("MAILRELAY_INBOX_PAGE_SIZE has invalid value %q: must be a positive integer", v)
		}
		pageSize = parsed
	}

	rejectGuests := false
	if v, ok := os.LookupEnv("MAILRELAY_REJECT_GUESTS"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("MAILRELAY_REJECT_GUESTS has invalid value %q: %w", v, err)
		}
		rejectGuests = parsed
	}

	return &Config{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		TenantID:      tenantID,
		RedirectURI:   redirectURI,
		Scopes:        scopes,
		SecretKey:     secretKey,
		GraphBaseURL:  graphBaseURL,
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		InboxPageSize: pageSize,
		RejectGuests:  rejectGuests,
	}, nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// decodeSecretKey accepts standard or URL-safe base64 and requires exactly
// 32 bytes, matching the AES-256 key the token store seals with.
func decodeSecretKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("MAILRELAY_SECRET_KEY is required")
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("MAILRELAY_SECRET_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("MAILRELAY_SECRET_KEY must decode to 32 bytes, got %d", len(key))
	}

	return key, nil
}
