// Package requestid tags every HTTP request with a correlation id so the log
// lines of one login (password step, second factor, session activation) can be
// found together.
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//
// Client supplied ids are reused when they are short and made of letters,
// digits, dashes and underscores; anything else is replaced by a new UUID.
package requestid
