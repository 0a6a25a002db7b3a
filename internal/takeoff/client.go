// Package takeoff is the client of the quantity-extraction engine, a gRPC
// service that reads floors and rooms out of quantity takeoff PDFs.
package takeoff

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// ExtractMethod is the full gRPC method name of the engine's unary call.
// Messages are google.protobuf.Struct on both sides.
const ExtractMethod = "/takeoff.v1.QuantityExtraction/Extract"

type Request struct {
	Content  []byte
	Filename string
	MimeType string
	Language string
}

type Response struct {
	Floors           []entity.Floor
	Summary          map[string]any
	Tier             string
	ProcessingTimeMs int64
}

// wire is the JSON view of the response Struct.
type wire struct {
	Result struct {
		Floors  []entity.Floor `json:"floors"`
		Summary map[string]any `json:"summary"`
	} `json:"result"`
	Tier             string  `json:"tier"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

type Client struct {
	cc      grpc.ClientConnInterface
	closer  func() error
	timeout time.Duration
	logger  *slog.Logger
}

// Dial opens a plaintext connection to addr.
func Dial(addr string, timeout time.Duration, logger *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial takeoff engine %s: %w", addr, err)
	}
	c := NewClient(conn, timeout, logger)
	c.closer = conn.Close
	return c, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{cc: cc, timeout: timeout, logger: logger}
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Healthy asks the engine's standard health service.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(c.cc).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("takeoff health: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return common.NotReady(fmt.Sprintf("takeoff engine is %s", resp.GetStatus()))
	}
	return nil
}

func (c *Client) Extract(ctx context.Context, req Request) (*Response, error) {
	in, err := structpb.NewStruct(map[string]any{
		"content":   base64.StdEncoding.EncodeToString(req.Content),
		"filename":  req.Filename,
		"mime_type": req.MimeType,
		"language":  req.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, ExtractMethod, in, out); err != nil {
		c.logger.Error("takeoff.extract.failed",
			"code", status.Code(err).String(),
			"size_bytes", len(req.Content),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err)
		if status.Code(err) == codes.Unavailable {
			return nil, common.NewAppError(common.CodeExtraction, "takeoff engine unavailable", err)
		}
		return nil, fmt.Errorf("takeoff extract: %w", err)
	}

	raw, err := json.Marshal(out.AsMap())
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	resp := &Response{
		Floors:           w.Result.Floors,
		Summary:          w.Result.Summary,
		Tier:             w.Tier,
		ProcessingTimeMs: int64(w.ProcessingTimeMs),
	}
	if resp.ProcessingTimeMs == 0 {
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	}
	c.logger.Info("takeoff.extract.ok",
		"floors", len(resp.Floors),
		"tier", resp.Tier,
		"elapsed_ms", time.Since(start).Milliseconds())
	return resp, nil
}
