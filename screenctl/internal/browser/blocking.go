package browser

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// applyURLBlocking fails every request matching one of patterns (glob
// syntax, e.g. "*doubleclick.net*"). Other requests are not intercepted.
// The returned router must be stopped when the page goes away.
func applyURLBlocking(page *rod.Page, patterns []string, log *slog.Logger) *rod.HijackRouter {
	if len(patterns) == 0 {
		return nil
	}
	router := page.HijackRequests()
	for _, pat := range patterns {
		err := router.Add(pat, "", func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
		if err != nil {
			log.Warn("browser: block pattern rejected", "pattern", pat, "error", err)
		}
	}
	go router.Run()
	return router
}
