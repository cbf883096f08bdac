// backend/internal/infra/firestore/client.go
package firestoreinfra

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ClientWrapper holds the Firestore client the remote document store writes through.
type ClientWrapper struct {
	Client    *firestore.Client
	ProjectID string
}

// ClientOptions is shared by every GCP client (Firestore, GCS, Secret Manager, Firebase).
// An empty path means Application Default Credentials.
func ClientOptions(credentialsFile string) []option.ClientOption {
	if strings.TrimSpace(credentialsFile) == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}
}

// NewClient opens Firestore for projectID. projectID は必須。
func NewClient(ctx context.Context, projectID, credentialsFile string, lg *zap.Logger) (*ClientWrapper, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("firestoreinfra: project id is empty")
	}
	c, err := firestore.NewClient(ctx, projectID, ClientOptions(credentialsFile)...)
	if err != nil {
		return nil, fmt.Errorf("firestoreinfra: open %s: %w", projectID, err)
	}
	if lg != nil {
		lg.Named("firestore").Info("client ready", zap.String("project", projectID))
	}
	return &ClientWrapper{Client: c, ProjectID: projectID}, nil
}

func (w *ClientWrapper) Close() error {
	if w == nil || w.Client == nil {
		return nil
	}
	return w.Client.Close()
}
