package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{errors.New("boom"), CodeUnknown},
		{Config("protocol", "ftp", "unsupported protocol"), CodeConfig},
		{&BackendError{Protocol: "s3", Path: "b", Op: "list", Err: errors.New("denied")}, CodeBackend},
		{&DecodeError{Path: "a.bin", Err: errors.New("bad")}, CodeDecode},
		{&NoFilesFoundError{Path: "/tmp/x"}, CodeNoFiles},
		{fmt.Errorf("wrapped: %w", context.Canceled), CodeCancel},
		{fmt.Errorf("select: %w", &NoFilesFoundError{Path: "/x"}), CodeNoFiles},
	}
	for i, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("case %d: Classify(%v) = %s, want %s", i, c.err, got, c.want)
		}
	}
}

func TestFatal(t *testing.T) {
	if Fatal(nil) {
		t.Fatalf("nil must not be fatal")
	}
	if Fatal(fmt.Errorf("x: %w", &DecodeError{Path: "a", Err: errors.New("bad")})) {
		t.Fatalf("decode errors are per file")
	}
	if !Fatal(&BackendError{Protocol: "file", Path: "/", Op: "list", Err: errors.New("x")}) {
		t.Fatalf("backend errors abort the run")
	}
}

func TestMessagesNameOffendingValue(t *testing.T) {
	if msg := Config("protocol", "ftp", "unsupported protocol").Error(); !strings.Contains(msg, `"ftp"`) {
		t.Fatalf("config error should name value: %s", msg)
	}
	msg := (&NoFilesFoundError{Path: "/data", Pattern: `.*\.csv`}).Error()
	if !strings.Contains(msg, "/data") || !strings.Contains(msg, `.*\.csv`) {
		t.Fatalf("no files error should name path and pattern: %s", msg)
	}
	be := &BackendError{Protocol: "s3", Path: "bucket/docs", Op: "list", Err: errors.New("403")}
	if !strings.Contains(be.Error(), "s3://bucket/docs") {
		t.Fatalf("backend error should name location: %s", be.Error())
	}
	if !errors.Is(be, ErrBackendUnavailable) {
		t.Fatalf("backend error should match sentinel")
	}
}
