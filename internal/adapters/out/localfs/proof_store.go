// backend/internal/adapters/out/localfs/proof_store.go
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"booknest/internal/infra/imaging"
)

// ProofStore writes payment proofs below Dir for deployments without a
// bucket. The HTTP server serves Dir under URLPrefix.
type ProofStore struct {
	Dir       string
	URLPrefix string
}

func NewProofStore(dir, urlPrefix string) *ProofStore {
	p := strings.TrimRight(strings.TrimSpace(urlPrefix), "/")
	if p == "" {
		p = "/uploads"
	}
	return &ProofStore{Dir: dir, URLPrefix: p}
}

// PutPaymentProof implements usecase.ProofStorage.
func (s *ProofStore) PutPaymentProof(_ context.Context, orderID string, r io.Reader, contentType string) (string, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return "", errors.New("localfs: upload dir is empty")
	}
	oid := strings.Trim(strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(orderID)), ". ")
	if oid == "" {
		return "", errors.New("localfs: order id is empty")
	}
	data, err := imaging.Normalize(r, contentType)
	if err != nil {
		return "", err
	}

	rel := path.Join("payment-proofs", oid, uuid.NewString()+".jpg")
	full := filepath.Join(s.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("localfs: mkdir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("localfs: write: %w", err)
	}
	return s.URLPrefix + "/" + rel, nil
}
