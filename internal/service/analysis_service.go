package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"privlens/internal/domain/privacy"
	"privlens/internal/normalize"
	"privlens/internal/repository"
	"privlens/internal/vision"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmptyUpload      = fmt.Errorf("%w: uploaded file is empty", ErrInvalidInput)
	ErrUnsupportedImage = fmt.Errorf("%w: unsupported or corrupt image", ErrInvalidInput)
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// AuditRecorder stores aggregate metadata about each analysis.
type AuditRecorder interface {
	Record(ctx context.Context, entry repository.AuditEntry) error
}

type AnalysisService struct {
	annotator vision.Annotator
	provider  string
	audit     AuditRecorder
	log       zerolog.Logger
}

// NewAnalysisService wires the pipeline. A nil annotator selects mock mode.
// audit may be nil.
func NewAnalysisService(annotator vision.Annotator, provider string, audit AuditRecorder, log zerolog.Logger) *AnalysisService {
	return &AnalysisService{
		annotator: annotator,
		provider:  provider,
		audit:     audit,
		log:       log,
	}
}

func (s *AnalysisService) MockMode() bool {
	return s.annotator == nil
}

func (s *AnalysisService) Provider() string {
	return s.provider
}

// Analyze runs one upload through the pipeline. Either every detection is
// returned or an error is; there are no partial results.
func (s *AnalysisService) Analyze(ctx context.Context, requestID string, upload privacy.Upload) (*privacy.AnalysisResult, error) {
	start := time.Now()

	detections, err := s.detect(ctx, upload)
	if err != nil {
		s.record(ctx, requestID, upload, privacy.Counts{}, err, time.Since(start))
		return nil, err
	}

	result := &privacy.AnalysisResult{
		FilePath:    upload.FilePath,
		Detections:  detections,
		Explanation: normalize.Explain(detections),
	}

	counts := normalize.Count(detections)
	s.log.Info().
		Str("request_id", requestID).
		Str("provider", s.provider).
		Str("filename", upload.Filename).
		Int("detections", len(detections)).
		Int("faces", counts.Faces).
		Int("texts", counts.Texts).
		Int("plates", counts.Plates).
		Int("documents", counts.Documents).
		Dur("elapsed", time.Since(start)).
		Msg("image analyzed")

	s.record(ctx, requestID, upload, counts, nil, time.Since(start))
	return result, nil
}

func (s *AnalysisService) detect(ctx context.Context, upload privacy.Upload) ([]privacy.Detection, error) {
	if s.MockMode() {
		return normalize.MockDetections(), nil
	}

	if len(upload.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	width, height, err := imageDimensions(upload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	raw, err := s.annotator.Annotate(ctx, upload.Data)
	if err != nil {
		return nil, fmt.Errorf("annotate image: %w", err)
	}
	raw.Width, raw.Height = width, height

	detections, err := normalize.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize annotations: %w", err)
	}
	return detections, nil
}

func imageDimensions(data []byte) (int, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s image has no dimensions", format)
	}
	return cfg.Width, cfg.Height, nil
}

func (s *AnalysisService) record(ctx context.Context, requestID string, upload privacy.Upload, counts privacy.Counts, failure error, elapsed time.Duration) {
	if s.audit == nil {
		return
	}

	entry := repository.AuditEntry{
		RequestID: requestID,
		Provider:  s.provider,
		Filename:  upload.Filename,
		Counts:    counts,
		Outcome:   outcomeOK,
		Duration:  elapsed,
	}
	if failure != nil {
		entry.Outcome = outcomeError
		entry.ErrorKind = ErrorKind(failure)
	}

	// The analysis result does not depend on the audit write.
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn().
			Err(err).
			Str("request_id", requestID).
			Msg("failed to record analysis audit")
	}
}

// ErrorKind names the failure category for logs and audit rows.
func ErrorKind(err error) string {
	var cfgErr *vision.ConfigurationError
	var upErr *vision.UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "VALIDATION"
	case errors.As(err, &cfgErr):
		return "CONFIGURATION"
	case errors.As(err, &upErr):
		return string(upErr.Kind)
	default:
		return "INTERNAL"
	}
}
