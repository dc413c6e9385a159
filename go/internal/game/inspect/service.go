package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/diceboard/diceboard/go/internal/game/state"
)

const (
	// ServiceName is the fully-qualified name of the inspect service
	ServiceName = "diceboard.inspect.v1.InspectService"
	// GetSnapshotProcedure is the path of the GetSnapshot RPC
	GetSnapshotProcedure = "/" + ServiceName + "/GetSnapshot"

	shutdownTimeout = 5 * time.Second
)

// SnapshotProvider returns the current game snapshot
type SnapshotProvider interface {
	Snapshot() state.Snapshot
}

// Service exposes the client's game view for debugging tools
type Service struct {
	provider SnapshotProvider
}

// NewService creates a new inspect service
func NewService(provider SnapshotProvider) *Service {
	return &Service{provider: provider}
}

// GetSnapshot returns the latest snapshot as a protobuf Struct
func (s *Service) GetSnapshot(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	snap, err := SnapshotToProto(s.provider.Snapshot())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(snap), nil
}

// SnapshotToProto converts a snapshot through its JSON form into a Struct
func SnapshotToProto(snap state.Snapshot) (*structpb.Struct, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return structpb.NewStruct(fields)
}

// Handler returns the mux serving the inspect RPC and a health check
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(
		GetSnapshotProcedure,
		s.GetSnapshot,
	))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// Serve runs the inspect server on addr until ctx is cancelled
func (s *Service) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("inspect server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("inspect server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
