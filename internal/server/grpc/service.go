package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "reviewflow.v1.ReviewFlow"

// FullMethod returns the gRPC method path of name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ReviewFlowServer is implemented by *GRPCServer; grpc checks registrations
// against it.
type ReviewFlowServer interface {
	isReviewFlowServer()
}

// method is one RPC: a Struct in, a plain map out.
type method func(s *GRPCServer, ctx context.Context, req *structpb.Struct) (map[string]any, error)

// methods is the RPC table. Names not in publicMethods require an access
// token.
var methods = map[string]method{
	"Ping":             (*GRPCServer).ping,
	"RefreshTokens":    (*GRPCServer).refreshTokens,
	"RevokeSession":    (*GRPCServer).revokeSession,
	"ResolveInvite":    (*GRPCServer).resolveInvite,
	"AcceptInvite":     (*GRPCServer).acceptInvite,
	"DeclineInvite":    (*GRPCServer).declineInvite,
	"SubmitArticle":    (*GRPCServer).submitArticle,
	"InitialReview":    (*GRPCServer).initialReview,
	"AssignReviewer":   (*GRPCServer).assignReviewer,
	"UnassignReviewer": (*GRPCServer).unassignReviewer,
	"RequestRevisions": (*GRPCServer).requestRevisions,
	"StartRevisions":   (*GRPCServer).startRevisions,
	"SubmitRevision":   (*GRPCServer).submitRevision,
	"RequestApproval":  (*GRPCServer).requestApproval,
	"RequestRejection": (*GRPCServer).requestRejection,
	"Approve":          (*GRPCServer).approve,
	"Reject":           (*GRPCServer).reject,
	"GetArticle":       (*GRPCServer).getArticle,
	"ListMyArticles":   (*GRPCServer).listMyArticles,
	"ListAssignments":  (*GRPCServer).listAssignments,
	"ReviewerLabels":   (*GRPCServer).reviewerLabels,
	"History":          (*GRPCServer).history,
	"UploadURL":        (*GRPCServer).uploadURL,
	"DownloadURL":      (*GRPCServer).downloadURL,
}

var publicMethods = map[string]bool{
	FullMethod("Ping"):          true,
	FullMethod("RefreshTokens"): true,
	FullMethod("ResolveInvite"): true,
	FullMethod("AcceptInvite"):  true,
	FullMethod("DeclineInvite"): true,
}

func unaryMethod(name string, m method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			call := func(ctx context.Context, req any) (any, error) {
				return s.invoke(ctx, m, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, call)
		},
	}
}

func buildServiceDesc() grpc.ServiceDesc {
	sd := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*ReviewFlowServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "reviewflow/v1/reviewflow.proto",
	}
	for name, m := range methods {
		sd.Methods = append(sd.Methods, unaryMethod(name, m))
	}
	return sd
}

// ServiceDesc describes reviewflow.v1.ReviewFlow.
var ServiceDesc = buildServiceDesc()

// invoke runs m and converts its result and error for the wire.
func (s *GRPCServer) invoke(ctx context.Context, m method, req *structpb.Struct) (*structpb.Struct, error) {
	out, err := m(s, ctx, req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return resp, nil
}
