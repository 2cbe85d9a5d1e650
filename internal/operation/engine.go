package operation

import (
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
)

// EngineConfig holds the collaborators and settings of an Engine.
type EngineConfig struct {
	// Plugins runs the plugin extension points. Nil means no plugins.
	Plugins PluginRunner
	// LogSink receives the access log. Nil discards it.
	LogSink LogSink
	// PersistentSearches is notified of committed changes. Nil disables
	// persistent-search notification.
	PersistentSearches PersistentSearchRegistry
	// Logger records engine failures.
	Logger logging.Logger

	CancelWaitTimeout  time.Duration
	CancelPollInterval time.Duration
	// NotifyAbandonedOperations sends a CANCELED response even when the
	// cancel request did not ask for one.
	NotifyAbandonedOperations bool
}

// NewEngineConfig creates an EngineConfig with default settings.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		CancelWaitTimeout:  DefaultCancelWaitTimeout,
		CancelPollInterval: DefaultCancelPollInterval,
	}
}

// ApplySettings copies the engine section of the configuration file.
func (c *EngineConfig) ApplySettings(s config.EngineConfig) {
	c.CancelWaitTimeout = s.CancelWaitTimeout
	c.CancelPollInterval = s.CancelPollInterval
	c.NotifyAbandonedOperations = s.NotifyAbandonedOperations
}

// Engine drives operations through their lifecycle. It is safe for
// concurrent use; each operation is run by exactly one goroutine.
type Engine struct {
	config  EngineConfig
	plugins PluginRunner
	logSink LogSink
	psearch PersistentSearchRegistry
	logger  logging.Logger
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg *EngineConfig) *Engine {
	if cfg == nil {
		cfg = NewEngineConfig()
	}
	e := &Engine{
		config:  *cfg,
		plugins: cfg.Plugins,
		logSink: cfg.LogSink,
		psearch: cfg.PersistentSearches,
		logger:  cfg.Logger,
	}
	if e.plugins == nil {
		e.plugins = noPlugins{}
	}
	if e.logSink == nil {
		e.logSink = noLog{}
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.config.CancelWaitTimeout <= 0 {
		e.config.CancelWaitTimeout = DefaultCancelWaitTimeout
	}
	if e.config.CancelPollInterval <= 0 {
		e.config.CancelPollInterval = DefaultCancelPollInterval
	}
	return e
}

// Cancel asks op to stop and waits, within the configured bounds, for the
// answer. Binds are refused immediately.
func (e *Engine) Cancel(op Operation, req *CancelRequest) CancelResult {
	op.base().engine.CompareAndSwap(nil, e)
	return op.cancelWithin(req, e.config.CancelWaitTimeout, e.config.CancelPollInterval)
}

// Run executes op to completion on the calling goroutine. It must be called
// at most once per operation.
func (e *Engine) Run(op Operation) {
	op.base().engine.Store(e)
	if bind, ok := op.(*BindOperation); ok {
		e.runBind(bind)
		return
	}
	e.run(op)
}

// Reject completes op without running it: err becomes the outcome, which is
// logged, sent and passed to the post-response plugins like any other.
func (e *Engine) Reject(op Operation, err error) {
	b := op.base()
	b.engine.Store(e)
	op.start()
	b.cancel.publish(CancelTooLate)
	op.SetResponseData(err)
	b.stop()
	e.logSink.LogRequest(op)
	e.respond(op)
	e.logSink.LogResponse(op)
	b.dispatchPostResponse()
	b.finish()
}

func (b *Base) plugins() PluginRunner {
	e := b.engine.Load()
	if e == nil {
		return noPlugins{}
	}
	return e.plugins
}

func (b *Base) logSink() LogSink {
	e := b.engine.Load()
	if e == nil {
		return noLog{}
	}
	return e.logSink
}

func (b *Base) logger() logging.Logger {
	e := b.engine.Load()
	if e == nil {
		return logging.NewNop()
	}
	return e.logger
}

func (b *Base) notifyAbandoned() bool {
	e := b.engine.Load()
	return e != nil && e.config.NotifyAbandonedOperations
}

// opLogger returns a logger tagged with the operation's identifiers.
func (b *Base) opLogger() logging.Logger {
	var connID int64
	if b.conn != nil {
		connID = b.conn.ID()
	}
	return b.logger().WithFields("conn_id", connID, "op_id", b.operationID, "msg_id", b.messageID, "op", b.kind.String())
}

// sendResponse hands the outcome to the connection. Send errors are logged;
// the connection layer owns recovery.
// finish tells the connection, once, that the operation is over.
func (b *Base) finish() {
	if !b.finished.CompareAndSwap(false, true) {
		return
	}
	if f, ok := b.conn.(Finisher); ok {
		f.OperationFinished(b.owner)
	}
}

func (b *Base) sendResponse() {
	if b.conn == nil {
		return
	}
	if err := b.conn.SendResponse(b.owner); err != nil {
		b.opLogger().Error("failed to send response", "error", err)
	}
}
