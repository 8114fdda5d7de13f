// Package statusmirror optionally pushes the validator's current
// epoch/block/role to Firestore so operator dashboards can observe it in
// real time. It is disabled by default; when disabled every method is a
// no-op so callers never need to branch on whether it is configured.
package statusmirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Client wraps a Firestore client scoped to validator status documents.
type Client struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	logger    *log.Logger
	enabled   bool
	mu        sync.RWMutex
}

// ClientConfig configures the status mirror client.
type ClientConfig struct {
	// ProjectID is the Firebase/GCP project ID.
	ProjectID string

	// CredentialsFile is the path to the service account JSON file. If
	// empty, the SDK falls back to GOOGLE_APPLICATION_CREDENTIALS or
	// application default credentials.
	CredentialsFile string

	// Enabled controls whether Firestore operations are actually performed.
	Enabled bool

	Logger *log.Logger
}

// DefaultConfig returns a ClientConfig populated from environment variables.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Enabled:         getEnvBool("FIRESTORE_ENABLED", false),
		Logger:          log.New(os.Stdout, "[StatusMirror] ", log.LstdFlags),
	}
}

// NewClient builds a status mirror client. When cfg.Enabled is false it
// returns immediately with a no-op client and performs no network calls.
func NewClient(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[StatusMirror] ", log.LstdFlags)
	}

	client := &Client{
		projectID: cfg.ProjectID,
		logger:    cfg.Logger,
		enabled:   cfg.Enabled,
	}

	if !cfg.Enabled {
		cfg.Logger.Println("Firestore sync is DISABLED - running in no-op mode")
		return client, nil
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID is required when Firestore is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	client.app = app
	client.firestore = firestoreClient

	cfg.Logger.Printf("Firestore status mirror initialized for project: %s", cfg.ProjectID)
	return client, nil
}

// IsEnabled reports whether the mirror performs real writes.
func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Close releases the underlying Firestore client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}

// Status is the document pushed to Firestore on every run of the status
// mirror job.
type Status struct {
	Epoch     int64     `firestore:"epoch"`
	Block     int64     `firestore:"block"`
	Role      string    `firestore:"role"`
	Address   string    `firestore:"address"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Push writes the validator's current status to
// /validators/{validatorID}. It is a no-op when the mirror is disabled.
func (c *Client) Push(ctx context.Context, validatorID string, status Status) error {
	if !c.IsEnabled() {
		c.logger.Printf("Firestore disabled - skipping status push for validator=%s epoch=%d block=%d",
			validatorID, status.Epoch, status.Block)
		return nil
	}
	if c.firestore == nil {
		return fmt.Errorf("firestore client not initialized")
	}

	_, err := c.firestore.Collection("validators").Doc(validatorID).Set(ctx, status)
	if err != nil {
		return fmt.Errorf("failed to push status for validator %s: %w", validatorID, err)
	}
	return nil
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1" || val == "yes"
}
