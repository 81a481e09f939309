package control

import (
	"context"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafters-studio/motion-coordinator/internal/audit"
	"github.com/rafters-studio/motion-coordinator/internal/engine"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "motion.v1.Control"

// #region target
// Target is what the control service drives. *engine.Engine satisfies it.
type Target interface {
	Pause()
	Resume()
	UpdateBudget(patch motion.BudgetPatch) error
	Snapshot() engine.Snapshot
	Audit() audit.Result
}

// ControlServer is the handler set registered under ServiceName.
type ControlServer interface {
	Pause(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Resume(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	UpdateBudget(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Audit(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// #endregion target

// #region server
// Server implements ControlServer on top of a Target.
type Server struct {
	target Target
	logger zerolog.Logger
}

// NewServer returns a control server for target.
func NewServer(target Target, logger zerolog.Logger) *Server {
	return &Server{
		target: target,
		logger: logger.With().Str("component", "control").Logger(),
	}
}

// Register attaches the service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

func (s *Server) Pause(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.target.Pause()
	s.logger.Info().Msg("motion paused")
	return &emptypb.Empty{}, nil
}

func (s *Server) Resume(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.target.Resume()
	s.logger.Info().Msg("motion resumed")
	return &emptypb.Empty{}, nil
}

// UpdateBudget takes a partial budget keyed by its JSON field names and
// returns the budget in force afterwards.
func (s *Server) UpdateBudget(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var patch motion.BudgetPatch
	if err := fromStruct(in, &patch); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.target.UpdateBudget(patch); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	budget := s.target.Snapshot().Controller.Budget
	s.logger.Info().
		Int("max_concurrent", budget.MaxConcurrentAnimations).
		Int("max_load", budget.MaxTotalCognitiveLoad).
		Msg("budget updated")
	return encode(budget)
}

func (s *Server) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(StatusFromSnapshot(s.target.Snapshot()))
}

func (s *Server) Audit(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	r := s.target.Audit()
	if !r.Passed {
		s.logger.Warn().Str("reason", r.Reason).Msg("audit failed")
	}
	return encode(r)
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// #endregion server

// #region service-desc
func unary[T any](method string, call func(ControlServer, context.Context, *T) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(T)
		if err := dec(in); err != nil {
			return nil, err
		}
		cs := srv.(ControlServer)
		if interceptor == nil {
			return call(cs, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(cs, ctx, req.(*T))
		})
	}
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Pause", Handler: unary("Pause", func(s ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.Pause(ctx, in)
		})},
		{MethodName: "Resume", Handler: unary("Resume", func(s ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.Resume(ctx, in)
		})},
		{MethodName: "UpdateBudget", Handler: unary("UpdateBudget", func(s ControlServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.UpdateBudget(ctx, in)
		})},
		{MethodName: "Status", Handler: unary("Status", func(s ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.Status(ctx, in)
		})},
		{MethodName: "Audit", Handler: unary("Audit", func(s ControlServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.Audit(ctx, in)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "motion/v1/control.proto",
}

// #endregion service-desc
