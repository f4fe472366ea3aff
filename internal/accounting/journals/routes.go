package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Submit)
	r.Get("/entries/{groupID}", h.GetEntry)
	r.Post("/entries/{groupID}/approve", h.ApproveEntry)
	r.Post("/entries/{groupID}/post", h.PostEntry)
	r.Get("/{transactionID}", h.Get)
	r.Delete("/{transactionID}", h.Delete)
	r.Post("/{transactionID}/approve", h.Approve)
	r.Post("/{transactionID}/post", h.Post)
	r.Post("/{transactionID}/cancel", h.Cancel)
	r.Post("/{transactionID}/adjust", h.Adjust)
	r.Post("/{transactionID}/reverse", h.Reverse)
}
