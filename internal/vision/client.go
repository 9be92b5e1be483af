package vision

import (
	"context"
	"errors"
	"fmt"
	"time"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"

	"privlens/internal/domain/privacy"
)

// Annotator returns raw annotations for one image.
type Annotator interface {
	Annotate(ctx context.Context, image []byte) (privacy.RawAnnotations, error)
}

// ImageAnnotator is the subset of visionapi.ImageAnnotatorClient the adapter
// calls. Tests substitute a fake.
type ImageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

type Options struct {
	MaxResults int
	Timeout    time.Duration
}

type Client struct {
	api    ImageAnnotator
	closer func() error
	opts   Options
	log    zerolog.Logger
}

// NewClient dials Cloud Vision with the resolved credentials.
func NewClient(ctx context.Context, creds Credentials, opts Options, log zerolog.Logger) (*Client, error) {
	api, err := visionapi.NewImageAnnotatorClient(ctx, creds.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create image annotator client: %w", err)
	}
	c := NewClientWithAPI(api, opts, log)
	c.closer = api.Close
	log.Info().
		Str("credential_source", string(creds.Source)).
		Int("max_results", opts.MaxResults).
		Dur("timeout", opts.Timeout).
		Msg("cloud vision client ready")
	return c, nil
}

func NewClientWithAPI(api ImageAnnotator, opts Options, log zerolog.Logger) *Client {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50
	}
	return &Client{
		api:  api,
		opts: opts,
		log:  log,
	}
}

// Annotate requests faces, text, objects and labels in a single call. There
// is no retry: any failure goes straight back to the caller.
func (c *Client) Annotate(ctx context.Context, image []byte) (privacy.RawAnnotations, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: image},
				Features: c.features(),
			},
		},
	}

	start := time.Now()
	resp, err := c.api.BatchAnnotateImages(ctx, req)
	if err != nil {
		upErr := NewUpstreamError(err)
		c.log.Error().
			Err(err).
			Str("kind", string(upErr.Kind)).
			Dur("elapsed", time.Since(start)).
			Msg("cloud vision request failed")
		return privacy.RawAnnotations{}, upErr
	}

	responses := resp.GetResponses()
	if len(responses) == 0 {
		return privacy.RawAnnotations{}, NewUpstreamError(errors.New("empty response from cloud vision"))
	}
	first := responses[0]
	if st := first.GetError(); st != nil && st.GetCode() != 0 {
		upErr := NewUpstreamError(errors.New(st.GetMessage()))
		c.log.Error().
			Int32("code", st.GetCode()).
			Str("message", st.GetMessage()).
			Str("kind", string(upErr.Kind)).
			Msg("cloud vision rejected image")
		return privacy.RawAnnotations{}, upErr
	}

	raw := fromResponse(first)
	c.log.Debug().
		Int("faces", len(raw.Faces)).
		Int("texts", len(raw.Texts)).
		Int("objects", len(raw.Objects)).
		Int("labels", len(raw.Labels)).
		Dur("elapsed", time.Since(start)).
		Msg("cloud vision annotations received")
	return raw, nil
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) features() []*visionpb.Feature {
	n := int32(c.opts.MaxResults)
	return []*visionpb.Feature{
		{Type: visionpb.Feature_FACE_DETECTION, MaxResults: n},
		{Type: visionpb.Feature_TEXT_DETECTION, MaxResults: n},
		{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: n},
		{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: n},
	}
}

// Unavailable is used when startup could not resolve credentials. Every
// call returns err, so the server keeps answering with a setup message.
func Unavailable(err error) Annotator {
	return unavailable{err: err}
}

type unavailable struct {
	err error
}

func (u unavailable) Annotate(context.Context, []byte) (privacy.RawAnnotations, error) {
	return privacy.RawAnnotations{}, u.err
}
