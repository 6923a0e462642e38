package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

type Kind string

const (
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindAnalyzerFailure    Kind = "AnalyzerFailure"
	KindInvalidInput       Kind = "InvalidInput"
)

const msgServiceUnavailable = "service unavailable"

// Failure is the structured outcome of an unsuccessful analyzer call.
type Failure struct {
	Service Service
	Kind    Kind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s analyzer: %s: %v", f.Service, f.Message, f.Err)
	}
	return fmt.Sprintf("%s analyzer: %s", f.Service, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Summary renders the failure the way it is recorded on an evaluation.
func (f *Failure) Summary() string {
	return fmt.Sprintf("%s: %s", f.Service, f.Message)
}

// AsFailure extracts the Failure from err. Foreign errors are reported as
// analyzer failures of svc.
func AsFailure(svc Service, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: err.Error(), Err: err}
}

func IsUnavailable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == KindServiceUnavailable
}

// transportFailure classifies an error returned by http.Client.Do.
func transportFailure(svc Service, err error) *Failure {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return &Failure{Service: svc, Kind: KindServiceUnavailable, Message: msgServiceUnavailable, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Failure{Service: svc, Kind: KindServiceUnavailable, Message: msgServiceUnavailable, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout() {
		return &Failure{Service: svc, Kind: KindServiceUnavailable, Message: msgServiceUnavailable, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: "request timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: "request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: "request canceled", Err: err}
	}
	return &Failure{Service: svc, Kind: KindAnalyzerFailure, Message: "request failed", Err: err}
}
