package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"storefront/internal/model"
	"storefront/internal/service"
	"storefront/internal/service/auth"
)

// TokenVerifier resolves a bearer credential to an external identity.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (auth.Identity, error)
}

type Handler struct {
	router *chi.Mux

	verifier TokenVerifier
	users    *service.UserService
	catalog  *service.CatalogService
	cart     *service.CartService
	orders   *service.OrderService
}

func NewHandler(verifier TokenVerifier, users *service.UserService, catalog *service.CatalogService, cart *service.CartService, orders *service.OrderService, allowedOrigins []string) *Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	h := &Handler{
		router:   router,
		verifier: verifier,
		users:    users,
		catalog:  catalog,
		cart:     cart,
		orders:   orders,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
	})

	h.router.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Post("/users", h.RegisterUser)

		r.Group(func(r chi.Router) {
			r.Use(h.withUser)
			r.Get("/users/me", h.GetMe)
			r.Put("/users/me", h.UpdateMe)
			r.Get("/cart", h.GetCart)
			r.Post("/cart/items", h.AddCartItem)
			r.Delete("/cart/items/{productID}", h.RemoveCartItem)
			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
		})
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type userCtxKey struct{}

// withUser resolves the bearer token and loads the internal user record.
// An unknown token is a credential failure; a verified token without a
// registered user maps to not-found, same as the original read endpoints.
func (h *Handler) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.Verify(r.Context(), bearerToken(r))
		if err != nil {
			respondError(w, r, err)
			return
		}

		user, err := h.users.GetByExternalUID(r.Context(), identity.UID)
		if err != nil {
			respondError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, user)))
	})
}

func userFromContext(ctx context.Context) *model.User {
	u, _ := ctx.Value(userCtxKey{}).(*model.User)
	return u
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
