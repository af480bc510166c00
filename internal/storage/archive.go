package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive conserve une copie des fichiers importés
type Archive interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Key clé d'archive : <propriétaire>/<session>/<nom de fichier>
func Key(ownerID, sessionID, fileName string) string {
	return path.Join(sanitize(ownerID), sanitize(sessionID), sanitize(filepath.Base(fileName)))
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}

// LocalArchive écrit sous un répertoire du disque
type LocalArchive struct {
	root string
}

// NewLocalArchive crée le répertoire racine si besoin
func NewLocalArchive(root string) (*LocalArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	return &LocalArchive{root: root}, nil
}

// Put écrit le fichier (écrase une version précédente)
func (a *LocalArchive) Put(_ context.Context, key string, data []byte) error {
	target := filepath.Join(a.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("failed to write archive %s: %w", key, err)
	}
	return nil
}

// S3PutAPI sous-ensemble du client S3 utilisé
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive dépose les fichiers dans un bucket S3
type S3Archive struct {
	client S3PutAPI
	bucket string
	prefix string
}

// S3Config paramètres du bucket d'archive
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3Archive charge la configuration AWS par défaut (profil, variables d'environnement)
func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket not configured")
	}
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = "eu-west-3"
		}
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slog.Info("upload archive on S3", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region)
	return NewS3ArchiveWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiveWithClient archive sur un client existant
func NewS3ArchiveWithClient(client S3PutAPI, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

// Put PutObject sous <prefix><key>
func (a *S3Archive) Put(ctx context.Context, key string, data []byte) error {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.prefix + key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", key, err)
	}
	return nil
}
