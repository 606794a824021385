package grpcserver

import (
	"context"
	"testing"
)

func TestWithSubject_And_SubjectFromCtx(t *testing.T) {
	t.Parallel()

	if sub, ok := SubjectFromCtx(context.Background()); ok || sub != "" {
		t.Fatalf("expected no subject in empty ctx")
	}

	ctx := WithSubject(context.Background(), "admin")
	got, ok := SubjectFromCtx(ctx)
	if !ok || got != "admin" {
		t.Fatalf("subject mismatch: got %q ok=%v", got, ok)
	}

	if _, ok := SubjectFromCtx(WithSubject(context.Background(), "")); ok {
		t.Fatalf("expected miss on empty subject")
	}
}
