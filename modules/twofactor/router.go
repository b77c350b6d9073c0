package twofactor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount under /auth.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	TwoFactor Mountable
}

// Router creates the authentication router.
//
// Example:
//
//	h := twofactor.NewHandler(svc, sessions, passwords)
//	go h.Registry().Run(ctx, cfg.SweepInterval)
//
//	r := chi.NewRouter()
//	r.Mount("/", twofactor.Router(twofactor.RouterOptions{TwoFactor: h}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Route("/auth", func(auth chi.Router) {
		if opts.TwoFactor != nil {
			auth.Mount("/2fa", opts.TwoFactor.Handle())
		}
	})

	return r
}
