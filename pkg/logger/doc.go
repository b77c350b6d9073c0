// Package logger provides a context-aware wrapper around log/slog with
// functional options and a set of attribute helpers that keep key names
// consistent across the 2FA services.
//
// New builds a *slog.Logger whose handler is either slog.NewJSONHandler or
// slog.NewTextHandler, wrapped in LogHandlerDecorator so ContextExtractor
// callbacks can inject request-scoped values on every record.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "mfa"),
//	    logger.WithContextValue("request_id", middleware.RequestIDKey),
//	)
//	log.InfoContext(ctx, "2fa verified",
//	    logger.AccountID(accountID),
//	    logger.Method("backup_code"),
//	    logger.RemainingCodes(5),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
//
// Shared secrets, tokens and backup codes are never passed to these helpers.
// Only identifiers, states and counts are logged.
package logger
