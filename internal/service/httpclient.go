package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"

	"golang.org/x/net/http2"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type DefaultHTTPClient struct{ *http.Client }

// NewHTTPClient returns a client that negotiates HTTP/2 over TLS and follows
// redirects for both HEAD and GET.
func NewHTTPClient(timeout time.Duration) (*DefaultHTTPClient, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}
	return &DefaultHTTPClient{Client: &http.Client{Timeout: timeout, Transport: tr}}, nil
}

type Kind int

const (
	Success Kind = iota
	Retryable
	Terminal
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	case Unsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Metadata are the change signals a HEAD response carries.
type Metadata struct {
	LastModified  string
	ETag          string
	ContentLength string
	ContentType   string
}

func metadataFrom(h http.Header) Metadata {
	return Metadata{
		LastModified:  h.Get("Last-Modified"),
		ETag:          h.Get("ETag"),
		ContentLength: h.Get("Content-Length"),
		ContentType:   h.Get("Content-Type"),
	}
}

// Body is the digest of a fetched response body.
type Body struct {
	SHA256 string
	Size   int64
}

// Outcome is the result of one request attempt.
type Outcome struct {
	Kind       Kind
	StatusCode int
	Failure    models.Status
	Err        error
	Header     Metadata
	Body       *Body
}

// Message is the error text reported for a failed outcome.
func (o Outcome) Message() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if o.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", o.StatusCode)
	}
	return string(o.Failure)
}

var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Prober issues the HEAD and GET requests of a check.
type Prober struct {
	Client    HTTPClient
	UserAgent string
	Timeout   time.Duration
	MaxBody   int64
}

func (p *Prober) Head(ctx context.Context, url string) Outcome {
	return p.do(ctx, http.MethodHead, url)
}

func (p *Prober) Get(ctx context.Context, url string) Outcome {
	return p.do(ctx, http.MethodGet, url)
}

func (p *Prober) do(ctx context.Context, method, url string) Outcome {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return Outcome{Kind: Terminal, Failure: models.StatusRequestError, Err: err}
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return p.classify(ctx, err)
	}
	defer utils.Try(resp.Body.Close)

	out := Outcome{StatusCode: resp.StatusCode, Header: metadataFrom(resp.Header)}
	switch {
	case method == http.MethodHead && resp.StatusCode == http.StatusMethodNotAllowed:
		out.Kind = Unsupported
		return out
	case resp.StatusCode >= 400:
		out.Kind = Retryable
		out.Failure = models.StatusHTTPError
		return out
	}

	if method == http.MethodGet {
		body, err := p.digest(resp.Body)
		if err != nil {
			o := p.classify(ctx, err)
			o.StatusCode = resp.StatusCode
			return o
		}
		out.Body = body
	}
	out.Kind = Success
	return out
}

func (p *Prober) digest(r io.Reader) (*Body, error) {
	if p.MaxBody > 0 {
		r = io.LimitReader(r, p.MaxBody+1)
	}
	sum, n, err := utils.HashReader(r)
	if err != nil {
		return nil, err
	}
	if p.MaxBody > 0 && n > p.MaxBody {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, p.MaxBody)
	}
	return &Body{SHA256: sum, Size: n}, nil
}

// classify maps a transport error onto the retry policy.
func (p *Prober) classify(ctx context.Context, err error) Outcome {
	switch {
	case IsTimeout(err):
		msg := "timeout"
		if p.Timeout > 0 {
			msg = fmt.Sprintf("timeout after %s", p.Timeout)
		}
		return Outcome{Kind: Retryable, Failure: models.StatusTimeout, Err: fmt.Errorf("%s: %w", msg, err)}
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return Outcome{Kind: Terminal, Failure: models.StatusRequestError, Err: err}
	case IsConnectionError(err):
		return Outcome{Kind: Retryable, Failure: models.StatusConnectionError, Err: err}
	default:
		return Outcome{Kind: Terminal, Failure: models.StatusRequestError, Err: err}
	}
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsConnectionError covers dial, DNS, TLS and dropped-connection failures.
func IsConnectionError(err error) bool {
	var (
		opErr   *net.OpError
		dnsErr  *net.DNSError
		tlsErr  tls.RecordHeaderError
		certErr *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.As(err, &tlsErr), errors.As(err, &certErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}
