package moderation

import (
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionClassifier appelle SafeSearch de Cloud Vision sur l'URI gs:// de l'image.
type VisionClassifier struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionClassifier crée le client Vision. Il doit être fermé avec Close.
func NewVisionClassifier(ctx context.Context, opts ...option.ClientOption) (*VisionClassifier, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionClassifier{client: client}, nil
}

// Close ferme le client Vision.
func (c *VisionClassifier) Close() error {
	return c.client.Close()
}

// Classify fait un seul appel à l'API, sans retry.
func (c *VisionClassifier) Classify(ctx context.Context, bucket, name string) (Verdict, error) {
	uri := fmt.Sprintf("gs://%s/%s", bucket, name)

	resp, err := c.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Source: &visionpb.ImageSource{ImageUri: uri}},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_SAFE_SEARCH_DETECTION},
			},
		}},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("safe search %s: %w", uri, err)
	}

	return verdictFromResponse(uri, resp)
}

func verdictFromResponse(uri string, resp *visionpb.BatchAnnotateImagesResponse) (Verdict, error) {
	if len(resp.GetResponses()) == 0 {
		return Verdict{}, fmt.Errorf("safe search %s: empty response", uri)
	}
	res := resp.GetResponses()[0]
	if st := res.GetError(); st != nil && st.GetCode() != 0 {
		return Verdict{}, fmt.Errorf("safe search %s: %s (code %d)", uri, st.GetMessage(), st.GetCode())
	}

	annotation := res.GetSafeSearchAnnotation()
	return Verdict{
		Adult:    fromProto(annotation.GetAdult()),
		Violence: fromProto(annotation.GetViolence()),
		Racy:     fromProto(annotation.GetRacy()),
	}, nil
}

func fromProto(l visionpb.Likelihood) Likelihood {
	if l < visionpb.Likelihood_UNKNOWN || l > visionpb.Likelihood_VERY_LIKELY {
		return Unknown
	}
	return Likelihood(l)
}
