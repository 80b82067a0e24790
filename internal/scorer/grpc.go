package scorer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region wire
// The model service speaks a single unary method whose request and response
// are google.protobuf.Struct:
//
//	request:  {"tokens": [int...], "ages": [days...]}
//	response: {"scores": [float...]}
const (
	serviceName = "delphi.v1.HazardScorer"
	scoreMethod = "/" + serviceName + "/Score"
)

func encodeRequest(tokens []vocab.Token, ages []float64) *structpb.Struct {
	tv := make([]*structpb.Value, len(tokens))
	for i, t := range tokens {
		tv[i] = structpb.NewNumberValue(float64(t))
	}
	av := make([]*structpb.Value, len(ages))
	for i, a := range ages {
		av[i] = structpb.NewNumberValue(a)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"tokens": structpb.NewListValue(&structpb.ListValue{Values: tv}),
		"ages":   structpb.NewListValue(&structpb.ListValue{Values: av}),
	}}
}

func decodeNumbers(s *structpb.Struct, field string) ([]float64, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return nil, fmt.Errorf("missing field %q", field)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("field %q is not a list", field)
	}
	out := make([]float64, len(list.GetValues()))
	for i, item := range list.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("field %q[%d] is not a number", field, i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}

func decodeRequest(req *structpb.Struct) ([]vocab.Token, []float64, error) {
	raw, err := decodeNumbers(req, "tokens")
	if err != nil {
		return nil, nil, err
	}
	ages, err := decodeNumbers(req, "ages")
	if err != nil {
		return nil, nil, err
	}
	tokens := make([]vocab.Token, len(raw))
	for i, f := range raw {
		tokens[i] = vocab.Token(f)
	}
	return tokens, ages, nil
}

func encodeResponse(scores []float64) *structpb.Struct {
	sv := make([]*structpb.Value, len(scores))
	for i, s := range scores {
		sv[i] = structpb.NewNumberValue(s)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"scores": structpb.NewListValue(&structpb.ListValue{Values: sv}),
	}}
}

// #endregion wire

// #region client-struct
// GRPCScorer calls a remote model service. Safe for concurrent use.
type GRPCScorer struct {
	conn    *grpc.ClientConn
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

// #endregion client-struct

// #region constructor
// NewGRPCScorer creates a client for the model service at addr. The
// connection is established lazily on the first call. timeout bounds each
// call; zero leaves the caller's context in charge.
func NewGRPCScorer(addr string, timeout time.Duration) (*GRPCScorer, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCScorer{conn: conn, cc: conn, timeout: timeout}, nil
}

// NewGRPCScorerWithConn wraps an existing connection. The caller keeps
// ownership of cc; Close is a no-op.
func NewGRPCScorerWithConn(cc grpc.ClientConnInterface, timeout time.Duration) *GRPCScorer {
	return &GRPCScorer{cc: cc, timeout: timeout}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if this scorer opened it.
func (g *GRPCScorer) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}

// #endregion close

// #region score
// Score sends the history to the model service.
func (g *GRPCScorer) Score(ctx context.Context, tokens []vocab.Token, ages []float64) ([]float64, error) {
	if err := checkLengths(tokens, ages); err != nil {
		return nil, err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	if err := g.cc.Invoke(ctx, scoreMethod, encodeRequest(tokens, ages), resp); err != nil {
		return nil, &Error{Op: "score rpc", Err: err}
	}

	scores, err := decodeNumbers(resp, "scores")
	if err != nil {
		return nil, &Error{Op: "decode response", Err: err}
	}
	return scores, nil
}

// #endregion score

// #region server
// RegisterServer exposes s on srv under the same wire contract GRPCScorer
// uses, so any Scorer can be served to remote controllers.
func RegisterServer(srv grpc.ServiceRegistrar, s Scorer) {
	srv.RegisterService(&serviceDesc, s)
}

// NewServer returns a traced gRPC server with s registered.
func NewServer(s Scorer, opts ...otelgrpc.Option) *grpc.Server {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler(opts...)))
	RegisterServer(srv, s)
	return srv
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Scorer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Score", Handler: scoreHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "delphi/v1/scorer.proto",
}

func scoreHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(Scorer)
	handler := func(ctx context.Context, req any) (any, error) {
		return serveScore(ctx, s, req.(*structpb.Struct))
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scoreMethod}
	return interceptor(ctx, in, info, handler)
}

func serveScore(ctx context.Context, s Scorer, req *structpb.Struct) (*structpb.Struct, error) {
	tokens, ages, err := decodeRequest(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if len(tokens) != len(ages) {
		return nil, status.Errorf(codes.InvalidArgument, "tokens and ages differ in length: %d vs %d", len(tokens), len(ages))
	}
	scores, err := s.Score(ctx, tokens, ages)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "score: %v", err)
	}
	return encodeResponse(scores), nil
}

// #endregion server
