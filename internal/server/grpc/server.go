// Package grpc exposes the review workflow over gRPC. Messages are
// google.protobuf.Struct values, so clients need no generated code.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/logging"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/services"
	"github.com/hungtran3011/research-review-sub001/internal/server/workflow"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// TokenService is the session part of the services layer used here.
type TokenService interface {
	ValidateAccessToken(token string) (*models.Subject, error)
	RefreshTokens(ctx context.Context, subjectID, refreshToken string, authorities []string) (*services.TokenPair, error)
	RevokeRefreshForUser(ctx context.Context, subjectID string) error
}

// WorkflowService is the article workflow used here.
type WorkflowService interface {
	SubmitArticle(ctx context.Context, subject models.Subject, in services.NewArticle) (*models.Article, error)
	InitialReview(ctx context.Context, subject models.Subject, cmd services.Command, decision workflow.Decision) (*models.Article, error)
	AssignReviewer(ctx context.Context, subject models.Subject, cmd services.Command, reviewer services.Reviewer) (*models.ReviewerAssignment, error)
	UnassignReviewer(ctx context.Context, subject models.Subject, cmd services.Command, reviewerID string) error
	RequestRevisions(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)
	StartRevisions(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)
	SubmitRevision(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)
	RequestApproval(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)
	RequestRejection(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)
	Approve(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)
	Reject(ctx context.Context, subject models.Subject, cmd services.Command) (*models.Article, error)
	ResolveInvite(ctx context.Context, raw string) (*services.InvitePreview, error)
	AcceptInvite(ctx context.Context, raw string) (*models.ReviewerAssignment, error)
	DeclineInvite(ctx context.Context, raw string) (*models.ReviewerAssignment, error)
	GetArticle(ctx context.Context, subject models.Subject, articleID string) (*models.Article, error)
	ListMyArticles(ctx context.Context, subject models.Subject) ([]models.Article, error)
	ListAssignments(ctx context.Context, subject models.Subject, articleID string) ([]models.ReviewerAssignment, error)
	ReviewerLabels(ctx context.Context, subject models.Subject, articleID string) (map[string]string, error)
	History(ctx context.Context, subject models.Subject, articleID string) ([]models.TransitionEvent, error)
}

// ManuscriptService hands out manuscript storage URLs.
type ManuscriptService interface {
	UploadURL(ctx context.Context, subject models.Subject, articleID string) (key, url string, err error)
	DownloadURL(ctx context.Context, subject models.Subject, articleID, key string) (string, error)
}

type GRPCServer struct {
	address        string
	tokens         TokenService
	workflow       WorkflowService
	manuscripts    ManuscriptService
	logger         logging.Logger
	requestTimeout time.Duration
}

func NewGRPCServer(a string, l logging.Logger, ts TokenService, ws WorkflowService, ms ManuscriptService, requestTimeout time.Duration) (*GRPCServer, error) {
	return &GRPCServer{
		address:        a,
		logger:         l.With("module", "grpc_server"),
		tokens:         ts,
		workflow:       ws,
		manuscripts:    ms,
		requestTimeout: requestTimeout,
	}, nil
}

func (s *GRPCServer) isReviewFlowServer() {}

// newServer builds the gRPC server with interceptors, tracing and the
// service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.timeoutInterceptor, s.loggingInterceptor, s.accessTokenInterceptor),
	)
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
