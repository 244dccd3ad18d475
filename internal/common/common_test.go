package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("NAME", "  ", Required).
		Field("MODE", "c", OneOf("a", "b")).
		Field("COUNT", -1, NonNegative).
		Field("SIZE", 0, Positive).
		Field("TZ", "Asia/Seoul", Timezone).
		Field("OK", "x", Required)

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)
	assert.Contains(t, v.ErrorMessage(), "NAME is required")
	assert.Contains(t, v.ErrorMessage(), "MODE must be one of a, b")
	assert.True(t, IsValidation(v.Error()))

	assert.NoError(t, NewValidator().Field("X", 1, Positive).Error())
}

func TestAppError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewAppError(CodeDatabase, "open database", cause)
	assert.Equal(t, "DB_ERROR: open database: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDatabase, AppErrorCode(err))
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, "", AppErrorCode(cause))
}

func TestInvalidArgumentErrorf(t *testing.T) {
	err := InvalidArgumentErrorf("bad %s", "thing")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "bad thing", status.Convert(err).Message())
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithUserID(WithRequestID(context.Background(), "r-1"), "u-1")
	assert.Equal(t, "r-1", RequestIDFromContext(ctx))
	assert.Equal(t, "u-1", UserIDFromContext(ctx))

	LoggerFromContext(ctx, base).Info("hello")
	assert.Contains(t, buf.String(), "req_id=r-1")
	assert.Contains(t, buf.String(), "user_id=u-1")

	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}
