package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v2"
)

// UploadSigner signs direct browser uploads of verification evidence to Cloudinary.
type UploadSigner struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	now       func() time.Time
}

// NewUploadSigner returns nil when no Cloudinary URL is configured.
func NewUploadSigner(cloudinaryURL, folder string) (*UploadSigner, error) {
	if cloudinaryURL == "" {
		return nil, nil
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &UploadSigner{
		cloudName: cld.Config.Cloud.CloudName,
		apiKey:    cld.Config.Cloud.APIKey,
		apiSecret: cld.Config.Cloud.APISecret,
		folder:    folder,
		now:       time.Now,
	}, nil
}

type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
}

// Sign produces parameters for an upload into folder/organizerID.
func (s *UploadSigner) Sign(organizerID string) (UploadSignature, error) {
	folder := s.folder + "/" + organizerID
	paramsToSign, err := api.StructToParams(uploader.UploadParams{Folder: folder})
	if err != nil {
		return UploadSignature{}, fmt.Errorf("prepare signature params: %w", err)
	}

	timestamp := s.now().Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, s.apiSecret)
	if err != nil {
		return UploadSignature{}, fmt.Errorf("sign upload params: %w", err)
	}
	return UploadSignature{
		Signature: signature,
		Timestamp: timestamp,
		APIKey:    s.apiKey,
		CloudName: s.cloudName,
		Folder:    folder,
	}, nil
}

func (h *Handler) GenerateUploadSignature(c *fiber.Ctx) error {
	if h.Uploads == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Uploads are not configured")
	}
	sig, err := h.Uploads.Sign(principal(c).ID.String())
	if err != nil {
		return err
	}
	return c.JSON(sig)
}
