package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Storage stores application documents in Cloudinary.
type Storage struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary backed document store.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Storage{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary and returns a secure URL. Directories in
// name become sub-folders below the configured folder.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	folder, publicID := splitObjectName(s.folder, name)

	params := uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: resourceType(name),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("file uploaded to cloudinary")

	return result.SecureURL, nil
}

func splitObjectName(base, name string) (string, string) {
	cleaned := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	dir, file := path.Split(cleaned)

	folder := strings.Trim(path.Join(strings.Trim(base, "/"), dir), "/")
	publicID := sanitizeID(strings.TrimSuffix(file, path.Ext(file)))
	if publicID == "" {
		publicID = "document"
	}

	return folder, publicID
}

func sanitizeID(value string) string {
	value = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, value)
	return strings.Trim(value, "-")
}

// resourceType keeps PDFs downloadable as-is instead of rasterised.
func resourceType(name string) string {
	if strings.EqualFold(path.Ext(name), ".pdf") {
		return "raw"
	}
	return "image"
}
