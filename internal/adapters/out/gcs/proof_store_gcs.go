// backend/internal/adapters/out/gcs/proof_store_gcs.go
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	gcscommon "booknest/internal/adapters/out/gcs/common"
	"booknest/internal/infra/imaging"
)

// ProofStoreGCS stores payment-proof images in one bucket.
//
// Layout:
// - objectPath: payment-proofs/{orderId}/{random}.jpg
//
// Uploads are resized and re-encoded as JPEG before writing. Public access is
// expected to come from bucket IAM (uniform access).
type ProofStoreGCS struct {
	Client *storage.Client
	Bucket string
	log    *zap.Logger
}

const proofPrefix = "payment-proofs"

func NewProofStoreGCS(client *storage.Client, bucket string, lg *zap.Logger) *ProofStoreGCS {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &ProofStoreGCS{
		Client: client,
		Bucket: strings.TrimSpace(bucket),
		log:    lg.Named("proof_store_gcs"),
	}
}

func (s *ProofStoreGCS) bucket() (*storage.BucketHandle, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("proof_store_gcs: storage client is nil")
	}
	if s.Bucket == "" {
		return nil, errors.New("proof_store_gcs: bucket is empty")
	}
	return s.Client.Bucket(s.Bucket), nil
}

// PutPaymentProof implements usecase.ProofStorage.
func (s *ProofStoreGCS) PutPaymentProof(ctx context.Context, orderID string, r io.Reader, contentType string) (string, error) {
	bh, err := s.bucket()
	if err != nil {
		return "", err
	}
	data, err := imaging.Normalize(r, contentType)
	if err != nil {
		return "", err
	}

	obj := ProofObjectPath(orderID, strings.ReplaceAll(uuid.NewString(), "-", ""))
	w := bh.Object(obj).NewWriter(ctx)
	w.ContentType = "image/jpeg"
	w.CacheControl = "private, max-age=0"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("proof_store_gcs: write %s: %w", obj, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("proof_store_gcs: close %s: %w", obj, err)
	}

	s.log.Info("payment proof stored", zap.String("orderId", orderID), zap.String("object", obj), zap.Int("bytes", len(data)))
	return gcscommon.PublicURL(s.Bucket, obj), nil
}

// DeleteByURL removes a previously stored proof. Unknown URLs and missing
// objects are ignored.
func (s *ProofStoreGCS) DeleteByURL(ctx context.Context, u string) error {
	b, obj, ok := gcscommon.ParseURL(u)
	if !ok || b != s.Bucket || !strings.HasPrefix(obj, proofPrefix+"/") {
		return nil
	}
	bh, err := s.bucket()
	if err != nil {
		return err
	}
	if err := bh.Object(obj).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// ProofObjectPath builds payment-proofs/{orderId}/{id}.jpg.
func ProofObjectPath(orderID, id string) string {
	oid := segment(orderID)
	if oid == "" {
		oid = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s.jpg", proofPrefix, oid, segment(id))
}

// segment keeps an id usable as one object path element.
func segment(s string) string {
	s = strings.NewReplacer("\\", "_", "/", "_").Replace(strings.TrimSpace(s))
	return strings.Trim(s, ". ")
}
