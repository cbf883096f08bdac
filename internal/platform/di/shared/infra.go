// backend/internal/platform/di/shared/infra.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"booknest/internal/adapters/out/mongodb"
	appcfg "booknest/internal/infra/config"
	firestoreinfra "booknest/internal/infra/firestore"
)

// Infra is shared runtime infrastructure for DI.
//   - owns external clients (Firestore/Mongo/FirebaseAuth/GCS/SecretManager)
//   - resolves "sm://" config values once
//
// Clients are only created when the config asks for them, so a local-only
// setup never touches GCP.
type Infra struct {
	Config *appcfg.Config
	Logger *zap.Logger

	// Clients (owned; Close-managed)
	Firestore     *firestoreinfra.ClientWrapper
	Mongo         *mongodb.DocumentStore
	GCS           *storage.Client
	FirebaseAuth  *firebaseauth.Client
	SecretManager *secretmanager.Client
}

// NewInfra initializes shared infra.
// The remote store and GCS are strict (return error) when configured.
// Firebase Auth is best-effort (warn + continue).
func NewInfra(ctx context.Context, cfg *appcfg.Config, lg *zap.Logger) (*Infra, error) {
	if cfg == nil {
		return nil, errors.New("shared.infra: config is nil")
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	log := lg.Named("infra")
	inf := &Infra{Config: cfg, Logger: lg}

	credFile := strings.TrimSpace(cfg.CredentialsFile)
	clientOpts := firestoreinfra.ClientOptions(credFile)
	if credFile != "" {
		log.Info("using credentials file for GCP clients", zap.String("file", redactPath(credFile)))
	}

	// 1) Secret Manager, only when a value points at it
	if cfg.NeedsSecrets() {
		sm, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("shared.infra: secretmanager.NewClient failed: %w", err)
		}
		inf.SecretManager = sm
		acc := &appcfg.SecretManagerAccessor{Client: sm, ProjectID: cfg.ProjectID}
		if err := appcfg.ResolveSecrets(ctx, cfg, acc); err != nil {
			_ = inf.Close()
			return nil, err
		}
		log.Info("secrets resolved from Secret Manager")
	}

	// 2) Remote document store (strict)
	switch cfg.Remote {
	case appcfg.RemoteFirestore:
		fs, err := firestoreinfra.NewClient(ctx, cfg.ProjectID, credFile, lg)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: firestore (project=%s): %w", cfg.ProjectID, err)
		}
		inf.Firestore = fs
	case appcfg.RemoteMongo:
		m, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: %w", err)
		}
		inf.Mongo = m
		log.Info("mongodb connected", zap.String("database", cfg.MongoDatabase))
	}

	// 3) GCS (strict when a bucket is configured)
	if strings.TrimSpace(cfg.GCSBucket) != "" {
		gcsClient, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			_ = inf.Close()
			return nil, fmt.Errorf("shared.infra: storage.NewClient failed: %w", err)
		}
		inf.GCS = gcsClient
		log.Info("GCS storage client initialized", zap.String("bucket", cfg.GCSBucket))
	}

	// 4) Firebase Auth (best-effort)
	if cfg.FirebaseAuth {
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
		if err != nil {
			log.Warn("firebase app init failed", zap.Error(err))
		} else if authClient, err := fbApp.Auth(ctx); err != nil {
			log.Warn("firebase auth init failed", zap.Error(err))
		} else {
			inf.FirebaseAuth = authClient
			log.Info("Firebase Auth initialized")
		}
	}

	return inf, nil
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.Firestore != nil {
		errs = append(errs, i.Firestore.Close())
	}
	if i.Mongo != nil {
		errs = append(errs, i.Mongo.Close(context.Background()))
	}
	if i.GCS != nil {
		errs = append(errs, i.GCS.Close())
	}
	if i.SecretManager != nil {
		errs = append(errs, i.SecretManager.Close())
	}
	return errors.Join(errs...)
}

// redactPath keeps only the file name of a credentials path for logs.
func redactPath(p string) string {
	if p == "" {
		return ""
	}
	return ".../" + filepath.Base(p)
}
