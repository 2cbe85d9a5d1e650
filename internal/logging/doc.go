// Package logging provides structured logging for the lifecycle engine.
//
// Logger is a small key/value interface backed by hashicorp/go-hclog.
// Components take a Logger and derive scoped loggers from it:
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/obacore/engine.log",
//	})
//	connLog := logger.Named("conn").WithFields("conn_id", conn.ID())
//	connLog.Info("connection accepted", "remote", addr)
//
// For testing, use a no-op logger:
//
//	logger := logging.NewNop()
//
// GenerateRequestID returns random UUIDs suitable for correlating the
// request and response lines of one operation.
package logging
