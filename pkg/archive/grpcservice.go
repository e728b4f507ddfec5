package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// QueryService exposes Store's read path over gRPC: ListEvents and
// GetSessionTimeline. Rather than depend on a protoc-generated
// *_grpc.pb.go pair (this module's build step never runs protoc), the
// service is registered through a hand-written grpc.ServiceDesc whose
// request/response messages are google.golang.org/protobuf's
// precompiled well-known types (structpb.Struct, timestamppb.Timestamp)
// — real, already-generated protobuf code, not a hand-authored stub.
type QueryService struct {
	store *Store
}

// NewQueryService wraps store for gRPC registration.
func NewQueryService(store *Store) *QueryService {
	return &QueryService{store: store}
}

// ListEvents handles the ListEvents RPC: request carries
// {"session_id": "...", "limit": N} as a structpb.Struct, response is
// {"events": [...]} with each event flattened to field/value pairs.
func (q *QueryService) ListEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID := req.GetFields()["session_id"].GetStringValue()
	limit := int(req.GetFields()["limit"].GetNumberValue())

	events, err := q.store.ListEvents(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: grpc ListEvents: %w", err)
	}
	return eventsToStruct(events)
}

// GetSessionTimeline handles the GetSessionTimeline RPC: request
// carries {"session_id": "..."}, response mirrors ListEvents's shape
// across the session's full lifetime.
func (q *QueryService) GetSessionTimeline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sessionID := req.GetFields()["session_id"].GetStringValue()

	events, err := q.store.SessionTimeline(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("archive: grpc GetSessionTimeline: %w", err)
	}
	return eventsToStruct(events)
}

func eventsToStruct(events []Event) (*structpb.Struct, error) {
	rows := make([]any, 0, len(events))
	for _, ev := range events {
		var payload any
		if len(ev.Payload) > 0 {
			_ = json.Unmarshal(ev.Payload, &payload)
		}
		rows = append(rows, map[string]any{
			"event_id":    ev.ID,
			"session_id":  ev.SessionID,
			"task_id":     ev.TaskID,
			"event_type":  ev.EventType,
			"payload":     payload,
			"occurred_at": timestamppb.New(ev.OccurredAt).AsTime().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return structpb.NewStruct(map[string]any{"events": rows})
}

// archiveQueryServiceDesc is the hand-authored analogue of a
// protoc-plugin-generated _ServiceDesc: one RPC method per Store query,
// unary request/response, structpb.Struct on the wire.
var archiveQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: "forgeswarm.archive.v1.ArchiveQuery",
	HandlerType: (*QueryService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListEvents",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(structpb.Struct)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*QueryService).ListEvents(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/forgeswarm.archive.v1.ArchiveQuery/ListEvents"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(*QueryService).ListEvents(ctx, req.(*structpb.Struct))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "GetSessionTimeline",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(structpb.Struct)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*QueryService).GetSessionTimeline(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/forgeswarm.archive.v1.ArchiveQuery/GetSessionTimeline"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(*QueryService).GetSessionTimeline(ctx, req.(*structpb.Struct))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pkg/archive/query.proto",
}

// RegisterArchiveQueryServer registers svc against s, the same shape a
// generated RegisterArchiveQueryServer(s, svc) call would produce.
func RegisterArchiveQueryServer(s *grpc.Server, svc *QueryService) {
	s.RegisterService(&archiveQueryServiceDesc, svc)
}
