// Package embedder talks to the face embedding service that turns photos into
// face embedding vectors.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/sightmatch/internal/logging"
)

const defaultServiceURL = "http://localhost:8000"

// ErrNoFace is returned when the service found no face in the photo.
var ErrNoFace = errors.New("no face detected")

// FaceEmbedder extracts a single face embedding from a photo.
type FaceEmbedder interface {
	FaceEmbedding(ctx context.Context, imageData []byte) ([]float32, error)
}

// Client computes face embeddings using the embedding service.
type Client struct {
	baseURL      string
	maxImageSize int
	client       *http.Client
	logger       *slog.Logger
}

var _ FaceEmbedder = (*Client)(nil)

// NewClient creates a new embedding service client. Photos larger than
// maxImageSize on either edge are downscaled before upload; 0 disables that.
func NewClient(baseURL string, maxImageSize int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: maxImageSize,
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logging.NewComponentLogger(logger, "embedder"),
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// FirstFace returns the embedding of the first detected face, or ErrNoFace.
func (r *FaceResponse) FirstFace() ([]float32, error) {
	if r == nil {
		return nil, ErrNoFace
	}
	for _, f := range r.Faces {
		if len(f.Embedding) > 0 {
			return f.Embedding, nil
		}
	}
	return nil, ErrNoFace
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	if len(imageData) == 0 {
		return nil, errors.New("image is empty")
	}

	if c.maxImageSize > 0 {
		resized, err := ResizeImage(imageData, c.maxImageSize)
		if err != nil {
			// Formats the decoders don't know are left to the service.
			c.logger.Debug("sending photo unresized", "error", err)
		} else {
			imageData = resized
		}
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// FaceEmbedding returns the embedding of the first face in the photo.
func (c *Client) FaceEmbedding(ctx context.Context, imageData []byte) ([]float32, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return nil, err
	}
	return resp.FirstFace()
}

// postMultipartImage posts the image as the "file" part of a multipart form.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
