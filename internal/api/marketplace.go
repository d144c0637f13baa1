package api

import (
	stderrors "errors"
	"net/http"

	"carehub/internal/common/errors"
	"carehub/internal/common/validation"
	"carehub/internal/domain/cart"
	"carehub/internal/domain/wishlist"
	sn "carehub/internal/workers/communication/send-notification"
	co "carehub/internal/workers/marketplace/create-order"
)

type cartView struct {
	*cart.Cart
	TotalCents int64 `json:"totalCents"`
	ItemCount  int   `json:"itemCount"`
}

func viewCart(c *cart.Cart) cartView {
	return cartView{Cart: c, TotalCents: c.Total(), ItemCount: c.Count()}
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.Carts.Load(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, viewCart(c))
}

// replaceCart overwrites the cart with the posted lines, priced from the
// catalog. Unknown or inactive products reject the whole request.
func (s *Server) replaceCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []cartItemRequest `json:"items"`
	}
	if _, ok := s.decode(w, r, "", &req); !ok {
		return
	}

	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity < 0 || it.Quantity > 99 {
			s.writeError(w, r, errors.NewInvalidInputError("each item needs a productId and a quantity between 0 and 99"))
			return
		}
		ids = append(ids, it.ProductID)
	}

	ctx := r.Context()
	products, err := s.Store.Products.ListByIDs(ctx, ids)
	if err != nil {
		s.writeError(w, r, storeError(err, "products", ""))
		return
	}

	next := cart.New(UserID(ctx))
	var missing []string
	for _, it := range req.Items {
		p, ok := products[it.ProductID]
		if !ok {
			missing = append(missing, it.ProductID)
			continue
		}
		if it.Quantity == 0 {
			continue
		}
		_ = next.Add(cart.Item{
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Quantity:   it.Quantity,
			ImageURL:   p.ImageURL,
		})
	}
	if len(missing) > 0 {
		s.writeError(w, r, errors.NewInvalidInputError("unknown products").
			WithMetadata("productIds", missing))
		return
	}

	if err := s.Carts.Save(ctx, next); err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, viewCart(next))
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if _, ok := s.decode(w, r, validation.SchemaCartItem, &req); !ok {
		return
	}

	ctx := r.Context()
	p, err := s.Store.Products.Get(ctx, req.ProductID)
	if err != nil {
		s.writeError(w, r, storeError(err, "products", req.ProductID))
		return
	}
	if !p.Active {
		s.writeError(w, r, errors.NewBusinessRuleError("Product is not available", "productId: "+p.ID))
		return
	}

	c, err := s.Carts.Update(ctx, UserID(ctx), func(c *cart.Cart) error {
		return c.Add(cart.Item{
			ProductID:  p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Quantity:   req.Quantity,
			ImageURL:   p.ImageURL,
		})
	})
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, viewCart(c))
}

// updateCartItem sets a line's quantity; zero removes the line.
func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if _, ok := s.decode(w, r, "", &req); !ok {
		return
	}
	if req.Quantity == nil || *req.Quantity < 0 || *req.Quantity > 99 {
		s.writeError(w, r, errors.NewInvalidInputError("quantity must be between 0 and 99"))
		return
	}

	ctx := r.Context()
	productID := r.PathValue("productId")
	c, err := s.Carts.Update(ctx, UserID(ctx), func(c *cart.Cart) error {
		return c.UpdateQuantity(productID, *req.Quantity)
	})
	if stderrors.Is(err, cart.ErrItemNotFound) {
		s.writeError(w, r, errors.NewResourceNotFoundError("cart", "productId: "+productID))
		return
	}
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, viewCart(c))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("productId")
	c, err := s.Carts.Update(ctx, UserID(ctx), func(c *cart.Cart) error {
		c.Remove(productID)
		return nil
	})
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, viewCart(c))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.Carts.Delete(r.Context(), UserID(r.Context())); err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createOrder checks out the caller's cart.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := s.Orders.Execute(ctx, &co.Input{UserID: UserID(ctx)})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.notify(ctx, &sn.Input{
		RecipientID:      UserID(ctx),
		NotificationType: sn.TypeOrderPlaced,
		Priority:         sn.PriorityNormal,
		Metadata: map[string]interface{}{
			"orderId":    out.OrderID,
			"totalCents": out.TotalCents,
			"itemCount":  out.ItemCount,
		},
	})
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) getWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.Wishlists.Load(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

// toggleWishlist removes a saved product or saves an unsaved one. Only
// saving needs the product to exist in the catalog.
func (s *Server) toggleWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserID(ctx)
	productID := r.PathValue("productId")

	current, err := s.Wishlists.Load(ctx, userID)
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}

	entry := wishlist.Entry{ProductID: productID}
	if !current.Contains(productID) {
		p, err := s.Store.Products.Get(ctx, productID)
		if err != nil {
			s.writeError(w, r, storeError(err, "products", productID))
			return
		}
		entry.Name = p.Name
		entry.PriceCents = p.PriceCents
	}

	var saved bool
	wl, err := s.Wishlists.Update(ctx, userID, func(wl *wishlist.Wishlist) {
		saved = wl.Toggle(entry)
	})
	if err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"productId": productID,
		"saved":     saved,
		"wishlist":  wl,
	})
}

func (s *Server) removeWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.PathValue("productId")
	if _, err := s.Wishlists.Update(ctx, UserID(ctx), func(wl *wishlist.Wishlist) {
		wl.Remove(productID)
	}); err != nil {
		s.writeError(w, r, errors.NewExternalServiceError("redis", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
