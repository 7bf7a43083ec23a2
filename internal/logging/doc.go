// Package logging wraps zap for the renewaldesk daemon and CLI.
//
// Every Logger method takes a context and prepends the trace, request and
// vendor ids found there. Output goes to stdout, to the OTEL log bridge,
// or both. Stdout entries pass through a redacting encoder that masks
// credential-like fields and the "evidence" and "prompt" keys, so vendor
// document text never lands in a log file even when a caller slips.
//
//	cfg, err := logging.FromLogConfig("info", "json", false)
//	if err != nil {
//		return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//		return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithVendorID(ctx, "vendor_123")
//	logger.Info(ctx, "brief generated", zap.Duration("latency", d))
package logging
