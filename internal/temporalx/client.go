package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

const (
	dialBackoff    = 250 * time.Millisecond
	dialBackoffMax = 5 * time.Second
)

// NewClient dials Temporal, retrying until DialMaxWait elapses. A config
// without an address disables Temporal and returns a nil client.
func NewClient(cfg Config, log *logger.Logger) (temporalsdkclient.Client, error) {
	cfg = cfg.WithDefaults()
	if !cfg.Enabled() {
		log.Info("Temporal address not set; dispatching to the local worker pool")
		return nil, nil
	}
	opts, err := clientOptions(cfg, log)
	if err != nil {
		return nil, err
	}
	opts.Namespace = cfg.Namespace

	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
		c, err := temporalsdkclient.DialContext(ctx, opts)
		cancel()
		if err == nil {
			log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			if cfg.AutoRegisterNamespace {
				if err := EnsureNamespace(context.Background(), cfg, log); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", err)
		time.Sleep(backoff(attempt))
	}
}

// EnsureNamespace creates the namespace when it does not exist. Meant for
// self-hosted clusters; managed namespaces are provisioned out of band.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	cfg = cfg.WithDefaults()
	if !cfg.Enabled() {
		return nil
	}
	opts, err := clientOptions(cfg, log)
	if err != nil {
		return err
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: %w", err)
	}
	defer nsClient.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for attempt := 1; ; attempt++ {
		_, err := nsClient.Describe(ctx, cfg.Namespace)
		if err == nil {
			return nil
		}
		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        cfg.Namespace,
				Description:                      "curriculum generation",
				WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(cfg.RetentionDays) * 24 * time.Hour),
			})
			var exists *serviceerror.NamespaceAlreadyExists
			if err == nil || errors.As(err, &exists) {
				log.Info("Temporal namespace ready", "namespace", cfg.Namespace, "retention_days", cfg.RetentionDays)
				return nil
			}
		}
		if !isRetryableRPC(err) || ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure (namespace=%s): %w", cfg.Namespace, err)
		}
		log.Warn("Temporal namespace ensure retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		time.Sleep(backoff(attempt))
	}
}

func clientOptions(cfg Config, log *logger.Logger) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{
		HostPort: cfg.Address,
		Logger:   log.With("component", "temporal"),
	}
	if cfg.ClientCertPath != "" || cfg.ClientKeyPath != "" || cfg.ClientCAPath != "" {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: client cert and key are both required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

func backoff(attempt int) time.Duration {
	d := dialBackoff
	for i := 1; i < attempt && d < dialBackoffMax; i++ {
		d *= 2
	}
	if d > dialBackoffMax {
		d = dialBackoffMax
	}
	return d
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
