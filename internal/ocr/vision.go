package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// VisionConfig configures the Cloud Vision backend.
type VisionConfig struct {
	CredentialsFile string `koanf:"credentials_file"`
	MaxBytes        int    `koanf:"max_bytes"`
}

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionExtractor runs DOCUMENT_TEXT_DETECTION on Google Cloud Vision. Both
// modes return the full detected text; the service has no notion of
// question versus answer regions.
type VisionExtractor struct {
	annotate annotateFunc
	close    func() error
	maxBytes int
	logger   *zap.Logger
}

// NewVisionExtractor dials the Vision API. Credentials come from
// cfg.CredentialsFile or, when empty, application default credentials.
func NewVisionExtractor(ctx context.Context, cfg VisionConfig, logger *zap.Logger) (*VisionExtractor, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	annotate := func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}
	return newVisionExtractor(annotate, client.Close, cfg.MaxBytes, logger), nil
}

func newVisionExtractor(annotate annotateFunc, closeFn func() error, maxBytes int, logger *zap.Logger) *VisionExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionExtractor{annotate: annotate, close: closeFn, maxBytes: maxBytes, logger: logger}
}

// Close releases the underlying client.
func (v *VisionExtractor) Close() error {
	if v.close == nil {
		return nil
	}
	return v.close()
}

func (v *VisionExtractor) ExtractText(ctx context.Context, image []byte, mode Mode) (string, error) {
	if _, err := Validate(image, v.maxBytes); err != nil {
		return "", err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := v.annotate(ctx, req)
	if err != nil {
		return "", unavailable(err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", unavailable(errors.New("empty vision response"))
	}

	r := resp.GetResponses()[0]
	if e := r.GetError(); e != nil && e.GetMessage() != "" {
		return "", unavailable(errors.New(e.GetMessage()))
	}

	text := strings.TrimSpace(r.GetFullTextAnnotation().GetText())
	v.logger.Debug("vision text extracted",
		zap.String("mode", string(mode)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}
