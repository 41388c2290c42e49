package executor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Failure reasons reported alongside FailedKey.
const (
	ReasonTimeout           = "timeout"
	ReasonCanceled          = "canceled"
	ReasonConnectionRefused = "connection_refused"
	ReasonDNS               = "dns"
	ReasonTLS               = "tls"
	ReasonProxy             = "proxy"
	ReasonEOF               = "eof"
	ReasonOther             = "other"
)

// Classify maps a transport error to a coarse reason.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		netErr   net.Error
		dnsErr   *net.DNSError
		certErr  *tls.CertificateVerificationError
		authErr  x509.UnknownAuthorityError
		hostErr  x509.HostnameError
		invalErr x509.CertificateInvalidError
		recErr   tls.RecordHeaderError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &dnsErr):
		return ReasonDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return ReasonConnectionRefused
	case errors.As(err, &certErr), errors.As(err, &authErr), errors.As(err, &hostErr),
		errors.As(err, &invalErr), errors.As(err, &recErr):
		return ReasonTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ReasonEOF
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "proxy"), strings.Contains(msg, "socks"):
		return ReasonProxy
	case strings.Contains(msg, "tls"), strings.Contains(msg, "certificate"):
		return ReasonTLS
	default:
		return ReasonOther
	}
}
