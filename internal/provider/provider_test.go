package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeStatusError struct{ code int }

func (e fakeStatusError) Error() string { return fmt.Sprintf("status %d", e.code) }
func (e fakeStatusError) StatusCode() int { return e.code }

func TestClassifyError_StructuredStatus(t *testing.T) {
	if got := ClassifyError(fakeStatusError{400}); got != ErrClient4xx {
		t.Fatalf("400 status: got %v, want ErrClient4xx", got)
	}
	if got := ClassifyError(fakeStatusError{429}); got != ErrClient4xx {
		t.Fatalf("429 status: got %v, want ErrClient4xx", got)
	}
	if got := ClassifyError(fakeStatusError{500}); got != ErrOther {
		t.Fatalf("500 status: got %v, want ErrOther", got)
	}
}

func TestClassifyError_ConnectivityStrings(t *testing.T) {
	cases := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("lookup api.example.com: no such host"),
		errors.New("read tcp: i/o timeout"),
	}
	for _, err := range cases {
		if got := ClassifyError(err); got != ErrTransient {
			t.Errorf("%v: got %v, want ErrTransient", err, got)
		}
	}
}

func TestClassifyError_ContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	if got := ClassifyError(ctx.Err()); got != ErrTransient {
		t.Fatalf("deadline exceeded: got %v, want ErrTransient", got)
	}
}

func TestClassifyError_Plain4xxString(t *testing.T) {
	if got := ClassifyError(errors.New("request failed with status 404 not found")); got != ErrClient4xx {
		t.Fatalf("got %v, want ErrClient4xx", got)
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := ClassifyError(nil); got != ErrOther {
		t.Fatalf("got %v, want ErrOther", got)
	}
}
