package firebase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/example/storefront/internal/config"
)

// Clients bundles the Firebase service clients used by the server.
// Bucket is nil when no storage bucket is configured.
type Clients struct {
	App        *firebase.App
	Auth       *auth.Client
	Firestore  *firestore.Client
	Bucket     *gcs.BucketHandle
	BucketName string
}

// ClientOptions picks credentials from the config: a credentials file, then
// base64 encoded service account JSON. With neither set, Application Default
// Credentials are used.
func ClientOptions(cfg *config.Config) ([]option.ClientOption, error) {
	if cfg.GoogleApplicationCredentials != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleApplicationCredentials)}, nil
	}
	if cfg.FirebaseServiceAccountJSONBase64 != "" {
		jsonKey, err := base64.StdEncoding.DecodeString(cfg.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, errors.New("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is not a valid base64 string")
		}
		return []option.ClientOption{option.WithCredentialsJSON(jsonKey)}, nil
	}
	return nil, nil
}

// Init initializes the Firebase app and its Auth, Firestore and Storage clients.
func Init(ctx context.Context, cfg *config.Config) (*Clients, error) {
	if cfg.FirebaseProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID must be set")
	}
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.FirebaseProjectID,
		StorageBucket: cfg.FirebaseStorageBucket,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}

	clients := &Clients{App: app, Auth: authClient, Firestore: fsClient}
	if cfg.FirebaseStorageBucket != "" {
		st, err := app.Storage(ctx)
		if err != nil {
			_ = fsClient.Close()
			return nil, fmt.Errorf("error getting Firebase Storage client: %w", err)
		}
		bucket, err := st.DefaultBucket()
		if err != nil {
			_ = fsClient.Close()
			return nil, fmt.Errorf("error opening storage bucket %q: %w", cfg.FirebaseStorageBucket, err)
		}
		clients.Bucket = bucket
		clients.BucketName = cfg.FirebaseStorageBucket
	}
	return clients, nil
}

// Close releases the Firestore connection.
func (c *Clients) Close() error {
	if c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}
