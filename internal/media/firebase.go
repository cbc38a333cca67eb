package media

import (
	"context"
	"errors"
	"fmt"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"

	"licznik.app/server/internal/models"
)

// folder groups every object this service writes into one bucket prefix.
const folder = "licznik"

// FirebaseStore stores images in a Firebase Storage bucket. The object path
// doubles as the deletable identifier.
type FirebaseStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewFirebaseStore resolves the named bucket from the Firebase app.
func NewFirebaseStore(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Storage client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bucket %s: %w", bucketName, err)
	}
	return &FirebaseStore{bucket: bucket, bucketName: bucketName}, nil
}

func (s *FirebaseStore) Upload(ctx context.Context, data []byte, contentType string) (models.ImageRef, error) {
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	objectPath := fmt.Sprintf("%s/%s%s", folder, uuid.New().String(), ext)

	w := s.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.PredefinedACL = "publicRead"
	w.CacheControl = "public, max-age=86400"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return models.ImageRef{}, fmt.Errorf("failed to write object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return models.ImageRef{}, fmt.Errorf("failed to store object %s: %w", objectPath, err)
	}

	return models.ImageRef{
		URL: fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, objectPath),
		ID:  objectPath,
	}, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, id string) error {
	err := s.bucket.Object(id).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	return nil
}
