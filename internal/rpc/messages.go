// internal/rpc/messages.go
package rpc

import (
	"fmt"
	"time"

	"job-dispatch/internal/domain"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Field names of the request struct on the wire.
const (
	fieldJobID     = "job_id"
	fieldOriginTag = "origin_tag"
	fieldCreatedAt = "created_at"
)

// EncodeRequest converts a domain request into its wire form.
func EncodeRequest(req domain.JobRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldJobID:     req.JobID,
		fieldOriginTag: req.OriginTag,
		fieldCreatedAt: req.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// DecodeRequest validates and converts a wire request.
func DecodeRequest(in *structpb.Struct) (domain.JobRequest, error) {
	fields := in.GetFields()

	jobID := fields[fieldJobID].GetStringValue()
	if jobID == "" {
		return domain.JobRequest{}, fmt.Errorf("%w: missing %s", domain.ErrInvalidRequest, fieldJobID)
	}

	req := domain.JobRequest{
		JobID:     jobID,
		OriginTag: fields[fieldOriginTag].GetStringValue(),
	}
	if raw := fields[fieldCreatedAt].GetStringValue(); raw != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.JobRequest{}, fmt.Errorf("%w: bad %s: %v", domain.ErrInvalidRequest, fieldCreatedAt, err)
		}
		req.CreatedAt = createdAt
	}
	return req, nil
}

// EncodeReply converts a domain reply into its wire form.
func EncodeReply(reply domain.JobReply) *wrapperspb.StringValue {
	return wrapperspb.String(reply.Text)
}

// DecodeReply converts a wire reply.
func DecodeReply(out *wrapperspb.StringValue) domain.JobReply {
	return domain.JobReply{Text: out.GetValue()}
}
