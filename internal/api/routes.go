/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts all API endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Get("/health", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", a.handleState)
		r.Get("/events", a.handleEvents)
		r.Get("/sources", a.handleSources)
		r.Get("/logs", a.handleLogs)

		r.Route("/playback", func(r chi.Router) {
			r.Post("/toggle", a.handleToggle)
			r.Post("/next", a.handleNext)
			r.Post("/previous", a.handlePrevious)
			r.Post("/cycle", a.handleCycle)
		})

		r.Get("/volume", a.handleGetVolume)
		r.Post("/volume", a.handleSetVolume)
		r.Post("/announce", a.handleAnnounce)
		r.Post("/input/button", a.handleButton)
	})

	r.Get("/ws/state", a.handleStateSocket)
}
