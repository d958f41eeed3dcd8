package toxicity

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roastr-ai/roast-engine/internal/logging"
)

// #region types
// AnalyzeMethod is the full gRPC method name of the scorer's unary call.
const AnalyzeMethod = "/roastr.toxicity.v1.ToxicityService/Analyze"

// DefaultTimeout bounds a single Analyze call.
const DefaultTimeout = 5 * time.Second

// Analysis is the scorer's verdict on one comment.
type Analysis struct {
	Score      float64  `json:"toxicity_score"`
	Categories []string `json:"categories"`
}

// Invoker is the unary-call slice of *grpc.ClientConn.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #endregion types

// #region client-struct
// Client calls the toxicity scorer over gRPC. Messages travel as
// structpb.Struct so no generated stubs are needed.
type Client struct {
	conn    *grpc.ClientConn
	invoker Invoker
	timeout time.Duration
	log     *logrus.Entry
}

// #endregion client-struct

// #region constructor
// NewClient connects to the scorer at addr.
func NewClient(addr string, timeout time.Duration, log *logrus.Entry) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewClientWithInvoker(conn, timeout, log)
	c.conn = conn
	return c, nil
}

// NewClientWithInvoker creates a Client over an injected invoker.
// Used for testing without a real gRPC connection.
func NewClientWithInvoker(inv Invoker, timeout time.Duration, log *logrus.Entry) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{invoker: inv, timeout: timeout, log: logging.OrDiscard(log)}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection, if the client owns one.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region analyze
// Analyze scores text. The score is clamped to [0,1].
func (c *Client) Analyze(ctx context.Context, text string) (Analysis, error) {
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply := &structpb.Struct{}
	if err := c.invoker.Invoke(ctx, AnalyzeMethod, req, reply); err != nil {
		c.log.WithFields(logrus.Fields{
			"event": "toxicity_unavailable",
			"code":  status.Code(err).String(),
		}).WithError(err).Warn("toxicity scorer call failed")
		return Analysis{}, fmt.Errorf("analyze rpc: %w", err)
	}
	return decode(reply), nil
}

// ScoreOr returns the scorer's score, or fallback when the scorer cannot
// be reached.
func (c *Client) ScoreOr(ctx context.Context, text string, fallback float64) float64 {
	a, err := c.Analyze(ctx, text)
	if err != nil {
		return Clamp(fallback)
	}
	return a.Score
}

func decode(reply *structpb.Struct) Analysis {
	fields := reply.GetFields()
	a := Analysis{Score: Clamp(fields["toxicity_score"].GetNumberValue())}
	for _, v := range fields["categories"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			a.Categories = append(a.Categories, s)
		}
	}
	return a
}

// Clamp bounds a score to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// #endregion analyze
