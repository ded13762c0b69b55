package utils

import (
	"time"

	"github.com/srand/jolt/datasync/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Connection settings shared by the watchdog server and the monitor client.
type GRPCOptions struct {
	// Interval between keepalive pings.
	KeepAliveTime *time.Duration `mapstructure:"keep_alive_time"`
	// Time to wait for a ping to be acknowledged.
	KeepAliveTimeout *time.Duration `mapstructure:"keep_alive_timeout"`
	// Client: ping even without active calls.
	KeepAliveWithoutCalls *bool `mapstructure:"keep_alive_without_calls"`
	// Server: allow clients to ping without active calls.
	PermitKeepAliveWithoutCalls *bool `mapstructure:"permit_keep_alive_without_calls"`
	// Server: minimum time between client pings.
	PermitKeepAliveTime *time.Duration `mapstructure:"permit_keep_alive_time"`
	// Upper bound on a single unary call.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

func (o *GRPCOptions) ToServerOptions() []grpc.ServerOption {
	opts := []grpc.ServerOption{}

	if o.KeepAliveTime != nil || o.KeepAliveTimeout != nil {
		params := keepalive.ServerParameters{}
		if o.KeepAliveTime != nil {
			params.Time = *o.KeepAliveTime
		}
		if o.KeepAliveTimeout != nil {
			params.Timeout = *o.KeepAliveTimeout
		}
		opts = append(opts, grpc.KeepaliveParams(params))
	}

	if o.PermitKeepAliveWithoutCalls != nil || o.PermitKeepAliveTime != nil {
		policy := keepalive.EnforcementPolicy{}
		if o.PermitKeepAliveWithoutCalls != nil {
			policy.PermitWithoutStream = *o.PermitKeepAliveWithoutCalls
		}
		if o.PermitKeepAliveTime != nil {
			policy.MinTime = *o.PermitKeepAliveTime
		}
		opts = append(opts, grpc.KeepaliveEnforcementPolicy(policy))
	}

	return opts
}

// Dial options for a plaintext connection with the configured keepalive.
func (o *GRPCOptions) ToDialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	if o.KeepAliveTime != nil || o.KeepAliveTimeout != nil || o.KeepAliveWithoutCalls != nil {
		params := keepalive.ClientParameters{}
		if o.KeepAliveTime != nil {
			params.Time = *o.KeepAliveTime
		}
		if o.KeepAliveTimeout != nil {
			params.Timeout = *o.KeepAliveTimeout
		}
		if o.KeepAliveWithoutCalls != nil {
			params.PermitWithoutStream = *o.KeepAliveWithoutCalls
		}
		opts = append(opts, grpc.WithKeepaliveParams(params))
	}

	return opts
}

func (o *GRPCOptions) Log() {
	log.Info("  grpc:")
	if o.KeepAliveTime != nil {
		log.Info("    keep_alive_time =", *o.KeepAliveTime)
	}
	if o.KeepAliveTimeout != nil {
		log.Info("    keep_alive_timeout =", *o.KeepAliveTimeout)
	}
	if o.KeepAliveWithoutCalls != nil {
		log.Info("    keep_alive_without_calls =", *o.KeepAliveWithoutCalls)
	}
	if o.PermitKeepAliveWithoutCalls != nil {
		log.Info("    permit_keep_alive_without_calls =", *o.PermitKeepAliveWithoutCalls)
	}
	if o.PermitKeepAliveTime != nil {
		log.Info("    permit_keep_alive_time =", *o.PermitKeepAliveTime)
	}
	log.Info("    call_timeout =", o.CallTimeout)
}
