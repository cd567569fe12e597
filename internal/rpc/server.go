package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/funvibe/thunkjit/internal/closure"
	"github.com/funvibe/thunkjit/internal/config"
	"github.com/funvibe/thunkjit/internal/expr"
	"github.com/funvibe/thunkjit/internal/thunk"
	"github.com/funvibe/thunkjit/internal/treefile"
	thunkjit "github.com/funvibe/thunkjit/pkg/embed"
)

// Server exposes the delegates of an engine.
type Server struct {
	engine *thunkjit.Engine
	logger *slog.Logger
	schema *schema
}

type unaryHandler func(s *Server, ctx context.Context, req *dynamic.Message, md *desc.MethodDescriptor) (*dynamic.Message, error)

var handlers = map[string]unaryHandler{
	"Invoke": (*Server).invoke,
	"List":   (*Server).list,
}

// NewServer creates a server for engine. A nil logger discards output.
func NewServer(engine *thunkjit.Engine, logger *slog.Logger) (*Server, error) {
	s, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = config.DiscardLogger()
	}
	return &Server{engine: engine, logger: logger, schema: s}, nil
}

// Register adds the engine service to gs. Every unary method of the schema
// must have a handler.
func (s *Server) Register(gs *grpc.Server) error {
	sd := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Metadata:    s.schema.file.GetName(),
	}
	for _, method := range s.schema.service.GetMethods() {
		if method.IsClientStreaming() || method.IsServerStreaming() {
			return fmt.Errorf("%s: streaming methods are not served", method.GetFullyQualifiedName())
		}
		h, ok := handlers[method.GetName()]
		if !ok {
			return fmt.Errorf("%s: no handler", method.GetFullyQualifiedName())
		}
		md := method
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: md.GetName(),
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := dynamic.NewMessage(md.GetInputType())
				if err := dec(in); err != nil {
					return nil, err
				}
				server := srv.(*Server)
				call := func(ctx context.Context, req any) (any, error) {
					return h(server, ctx, req.(*dynamic.Message), md)
				}
				if interceptor == nil {
					return call(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + md.GetName()}
				return interceptor(ctx, in, info, call)
			},
		})
	}
	gs.RegisterService(sd, s)
	return nil
}

func (s *Server) invoke(ctx context.Context, req *dynamic.Message, md *desc.MethodDescriptor) (*dynamic.Message, error) {
	name, _ := req.GetFieldByName("name").(string)
	d, ok := s.engine.Lookup(name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no delegate named %q", name)
	}

	items, err := messages(req.GetFieldByName("args"))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "args: %v", err)
	}
	values := make([]any, len(items))
	for i, item := range items {
		if values[i], err = decodeValue(item); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "argument %d: %v", i+1, err)
		}
	}
	args, err := treefile.ConvertArgs(d.Thunk().Type().Shape().Params, values)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
	}

	result, err := d.InvokeContext(ctx, args...)
	if err != nil {
		s.logger.Debug("invoke failed", "delegate", name, "error", err)
		return nil, status.Error(codeOf(err), err.Error())
	}

	value, err := s.schema.encodeValue(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "result: %v", err)
	}
	out := dynamic.NewMessage(md.GetOutputType())
	if err := out.TrySetFieldByName("result", value); err != nil {
		return nil, status.Errorf(codes.Internal, "result: %v", err)
	}
	if err := out.TrySetFieldByName("state", d.Thunk().State().String()); err != nil {
		return nil, status.Errorf(codes.Internal, "state: %v", err)
	}
	return out, nil
}

func (s *Server) list(_ context.Context, _ *dynamic.Message, md *desc.MethodDescriptor) (*dynamic.Message, error) {
	out := dynamic.NewMessage(md.GetOutputType())
	for _, d := range s.engine.Delegates() {
		t := d.Thunk()
		info := dynamic.NewMessage(s.schema.delegate)
		fields := map[string]any{
			"name":   d.Name,
			"shape":  t.Type().Shape().Key(),
			"policy": t.Type().Policy().String(),
			"state":  t.State().String(),
			"hits":   t.Hits(),
		}
		for k, v := range fields {
			if err := info.TrySetFieldByName(k, v); err != nil {
				return nil, status.Errorf(codes.Internal, "%s: %v", k, err)
			}
		}
		if err := out.TryAddRepeatedFieldByName("delegates", info); err != nil {
			return nil, status.Errorf(codes.Internal, "delegates: %v", err)
		}
	}
	return out, nil
}

func codeOf(err error) codes.Code {
	var thrown *expr.ThrownError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, thunk.ErrArity), errors.Is(err, thunk.ErrArgumentType), errors.Is(err, closure.ErrConversion):
		return codes.InvalidArgument
	case errors.As(err, &thrown):
		return codes.Aborted
	}
	return codes.Internal
}
