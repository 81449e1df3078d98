package transcription

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
)

// Compile-time assertion that GoogleRecognizer satisfies Recognizer.
var _ Recognizer = (*GoogleRecognizer)(nil)

// GoogleRecognizer recognizes speech with the Google Cloud Speech-to-Text
// API. Chunks are single-channel LINEAR16 PCM at the configured sample rate
// and are read directly from object storage by URI, so audio bytes never
// pass through this service.
type GoogleRecognizer struct {
	client *speech.Client
	config Config
}

// NewGoogleRecognizer creates a recognizer. Credentials are resolved from
// the environment (Application Default Credentials).
func NewGoogleRecognizer(ctx context.Context, config Config) (*GoogleRecognizer, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	return &GoogleRecognizer{
		client: client,
		config: config,
	}, nil
}

// Recognize implements Recognizer.
func (g *GoogleRecognizer) Recognize(ctx context.Context, blobPath string, punctuation bool) (string, error) {
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(g.config.SampleRateHertz),
			LanguageCode:               g.config.LanguageCode,
			EnableAutomaticPunctuation: punctuation,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: blobPath},
		},
	}

	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("recognize %s: %w", blobPath, err)
	}

	parts := make([]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, result.Alternatives[0].Transcript)
	}

	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// Close releases the underlying API client.
func (g *GoogleRecognizer) Close() error {
	return g.client.Close()
}
