package server

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
)

// ErrorDomain is the ErrorInfo domain attached to every scan error.
const ErrorDomain = "pantry.scan.v1"

var grpcCodes = map[pipeline.Code]codes.Code{
	pipeline.CodeInvalidRequest:     codes.InvalidArgument,
	pipeline.CodeQuotaExceeded:      codes.ResourceExhausted,
	pipeline.CodeNotAReceipt:        codes.FailedPrecondition,
	pipeline.CodeUnreadableImage:    codes.FailedPrecondition,
	pipeline.CodeNoFoodItems:        codes.FailedPrecondition,
	pipeline.CodeServiceUnavailable: codes.Unavailable,
	pipeline.CodeInternal:           codes.Internal,
}

// GRPCCode maps a scan error code to its transport status code.
func GRPCCode(code pipeline.Code) codes.Code {
	if c, ok := grpcCodes[code]; ok {
		return c
	}
	return codes.Internal
}

// toStatus converts an orchestrator error to a gRPC status carrying an
// ErrorInfo whose Reason is the scan error code.
func toStatus(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return status.FromContextError(ctx.Err()).Err()
	}
	var se *pipeline.ScanError
	if !errors.As(err, &se) {
		return status.Error(codes.Internal, pipeline.Message(pipeline.CodeInternal))
	}

	info := &errdetails.ErrorInfo{
		Reason:   string(se.Code),
		Domain:   ErrorDomain,
		Metadata: map[string]string{},
	}
	if u := se.Usage; u != nil {
		info.Metadata["tier"] = string(u.Tier)
		info.Metadata["used"] = strconv.Itoa(u.Used)
		info.Metadata["remaining"] = strconv.Itoa(u.Remaining)
		info.Metadata["effective_limit"] = strconv.Itoa(u.EffectiveLimit)
		info.Metadata["window_end"] = u.WindowEnd.Format("2006-01-02T15:04:05Z07:00")
	}

	st := status.New(GRPCCode(se.Code), se.Message)
	if withInfo, derr := st.WithDetails(info); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// ReasonOf extracts the scan error code from a status returned by the
// service, or "" when the status carries no ErrorInfo.
func ReasonOf(err error) pipeline.Code {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return pipeline.Code(info.GetReason())
		}
	}
	return ""
}
