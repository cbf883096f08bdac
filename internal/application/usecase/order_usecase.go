// backend/internal/application/usecase/order_usecase.go
package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"booknest/internal/application/notification"
	bookdom "booknest/internal/domain/book"
	cartdom "booknest/internal/domain/cart"
	"booknest/internal/domain/common"
	notifdom "booknest/internal/domain/notification"
	orderdom "booknest/internal/domain/order"
	piledom "booknest/internal/domain/pile"
)

// OrderUsecase covers checkout, the buyer's order list, payment proofs and the
// admin order workflow.
type OrderUsecase struct {
	orders orderdom.Repository
	pile   piledom.Repository
	carts  cartdom.Repository
	books  bookdom.Repository
	notes  *notification.Store
	proofs ProofStorage
	clock  Clock
	log    *zap.Logger
}

type OrderDeps struct {
	Orders orderdom.Repository
	Pile   piledom.Repository
	Carts  cartdom.Repository
	Books  bookdom.Repository
	Notes  *notification.Store
	Proofs ProofStorage
	Clock  Clock
	Logger *zap.Logger
}

func NewOrderUsecase(d OrderDeps) *OrderUsecase {
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &OrderUsecase{
		orders: d.Orders,
		pile:   d.Pile,
		carts:  d.Carts,
		books:  d.Books,
		notes:  d.Notes,
		proofs: d.Proofs,
		clock:  d.Clock,
		log:    d.Logger.Named("order_usecase"),
	}
}

// ============================================================
// Buyer
// ============================================================

type CheckoutInput struct {
	OrderType    string                 `json:"orderType"`
	CustomerInfo *orderdom.CustomerInfo `json:"customerInfo,omitempty"`
}

// Checkout turns the cart into a pending unpaid order. Pile orders also get
// one pile item per line. Stock is reduced and the cart is emptied.
func (uc *OrderUsecase) Checkout(ctx context.Context, in CheckoutInput) (orderdom.Order, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return orderdom.Order{}, err
	}
	typ := strings.TrimSpace(in.OrderType)
	if typ == "" {
		typ = orderdom.TypePile
	}
	if typ != orderdom.TypePile && typ != orderdom.TypeShipping {
		return orderdom.Order{}, orderdom.ErrInvalidType
	}
	if typ == orderdom.TypeShipping {
		if in.CustomerInfo == nil {
			return orderdom.Order{}, orderdom.ErrInvalidCustomer
		}
		if err := in.CustomerInfo.Validate(); err != nil {
			return orderdom.Order{}, err
		}
	}

	now := uc.clock.Now()
	c, err := uc.carts.Get(ctx)
	if err != nil {
		return orderdom.Order{}, err
	}
	lines, err := c.ConsumeAll(now)
	if err != nil {
		return orderdom.Order{}, err
	}

	items := make([]orderdom.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, orderdom.Item{
			BookID:   l.BookID,
			Title:    l.Title,
			Author:   l.Author,
			Price:    l.Price,
			Quantity: l.Quantity,
			Image:    l.Image,
		})
	}
	subtotal := orderdom.ItemsTotal(items)
	fee := 0.0
	if typ == orderdom.TypeShipping {
		fee = orderdom.ShippingFee
	}

	o, err := uc.orders.Create(ctx, orderdom.Order{
		UserID:        a.UserID,
		UserEmail:     a.Email,
		UserName:      a.Name,
		Items:         items,
		Subtotal:      subtotal,
		ShippingFee:   fee,
		Total:         subtotal + fee,
		Status:        orderdom.StatusPending,
		PaymentStatus: orderdom.PaymentUnpaid,
		OrderDate:     common.At(now),
		OrderType:     typ,
		CustomerInfo:  in.CustomerInfo,
	})
	if err != nil {
		return orderdom.Order{}, err
	}

	uc.adjustStock(ctx, items, -1)

	if typ == orderdom.TypePile {
		for _, it := range items {
			_, err := uc.pile.Create(ctx, piledom.Item{
				UserID:   a.UserID,
				OrderID:  o.ID,
				BookID:   it.BookID,
				Title:    it.Title,
				Author:   it.Author,
				Price:    it.Price,
				Quantity: it.Quantity,
				Image:    it.Image,
				AddedAt:  common.At(now),
				Status:   piledom.StatusPending,
			})
			if err != nil {
				return o, fmt.Errorf("order_usecase: add to pile: %w", err)
			}
		}
	}

	if err := uc.carts.Save(ctx, c); err != nil {
		return o, err
	}
	return o, nil
}

// adjustStock applies sign*quantity to each book's stock, never below zero.
// Stock drift is not worth failing an order over, so errors are only logged.
func (uc *OrderUsecase) adjustStock(ctx context.Context, items []orderdom.Item, sign int) {
	if uc.books == nil {
		return
	}
	for _, it := range items {
		b, err := uc.books.GetByID(ctx, it.BookID.String())
		if err != nil {
			uc.log.Warn("stock lookup failed", zap.String("bookId", it.BookID.String()), zap.Error(err))
			continue
		}
		stock := b.Stock + sign*it.Quantity
		if stock < 0 {
			stock = 0
		}
		if err := uc.books.Update(ctx, b.ID.String(), map[string]any{"stock": stock}); err != nil {
			uc.log.Warn("stock update failed", zap.String("bookId", b.ID.String()), zap.Error(err))
		}
	}
}

// ListMine returns the caller's orders, newest first.
func (uc *OrderUsecase) ListMine(ctx context.Context) ([]orderdom.Order, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	list, err := uc.orders.List(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(list)
	return list, nil
}

// Get returns an order the caller owns (admins see all).
func (uc *OrderUsecase) Get(ctx context.Context, id string) (*orderdom.Order, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsAdmin() && !o.OwnedBy(a.UserID) {
		return nil, orderdom.ErrNotFound
	}
	return o, nil
}

// Cancel: admins may cancel any open order; buyers only their own pending,
// unpaid orders. Stock is restored.
func (uc *OrderUsecase) Cancel(ctx context.Context, id string) error {
	a, err := requireActor(ctx)
	if err != nil {
		return err
	}
	o, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}
	if !a.IsAdmin() && (o.Status != orderdom.StatusPending || !o.PaymentStatus.Unpaid()) {
		return orderdom.ErrNotCancellable
	}
	return uc.setStatus(ctx, o, orderdom.StatusCancelled)
}

// UploadPaymentProof stores the image and moves the order to "paying".
func (uc *OrderUsecase) UploadPaymentProof(ctx context.Context, id string, img io.Reader, contentType string) (*orderdom.Order, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.OwnedBy(a.UserID) {
		return nil, orderdom.ErrForbidden
	}
	if o.Status != orderdom.StatusPending || !(o.PaymentStatus.Unpaid() || o.PaymentStatus == orderdom.PaymentRejected) {
		return nil, orderdom.ErrNotPayable
	}
	if uc.proofs == nil {
		return nil, fmt.Errorf("order_usecase: proof storage is not configured")
	}

	url, err := uc.proofs.PutPaymentProof(ctx, o.ID.String(), img, contentType)
	if err != nil {
		return nil, fmt.Errorf("order_usecase: store payment proof: %w", err)
	}
	now := uc.clock.Now()
	paying := orderdom.PaymentPaying
	if err := uc.orders.Update(ctx, o.ID.String(), orderdom.Patch{
		PaymentStatus:   &paying,
		PaymentProofURL: &url,
		PaymentProofAt:  &now,
	}); err != nil {
		return nil, err
	}
	o.PaymentStatus = paying
	o.PaymentProofURL = url
	o.PaymentProofAt = common.At(now)
	return o, nil
}

// ============================================================
// Admin
// ============================================================

func (uc *OrderUsecase) ListAll(ctx context.Context) ([]orderdom.Order, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	list, err := uc.orders.List(ctx, "")
	if err != nil {
		return nil, err
	}
	sortNewestFirst(list)
	return list, nil
}

// UpdateStatus changes the status and tells the buyer.
func (uc *OrderUsecase) UpdateStatus(ctx context.Context, id string, status orderdom.Status) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	if !status.Valid() {
		return orderdom.ErrInvalidStatus
	}
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return uc.setStatus(ctx, o, status)
}

func (uc *OrderUsecase) setStatus(ctx context.Context, o *orderdom.Order, status orderdom.Status) error {
	if o.Status == status {
		return nil
	}
	if err := uc.orders.UpdateStatus(ctx, o.ID.String(), status); err != nil {
		return err
	}
	if status == orderdom.StatusCancelled && o.Status != orderdom.StatusRejected {
		uc.adjustStock(ctx, o.Items, +1)
	}

	id := o.ID.String()
	switch status {
	case orderdom.StatusCompleted:
		uc.notifyBuyer(ctx, o.UserID, "Order Completed",
			fmt.Sprintf("Your Order #%s has been completed! Thank you for your purchase.", id), notifdom.TypeSuccess)
	case orderdom.StatusCancelled:
		uc.notifyBuyer(ctx, o.UserID, "Order Cancelled",
			fmt.Sprintf("Your Order #%s has been cancelled. Please contact support if you have questions.", id), notifdom.TypeError)
	case orderdom.StatusConfirmed:
		uc.notifyBuyer(ctx, o.UserID, "Order Confirmed",
			fmt.Sprintf("Your Order #%s has been confirmed.", id), notifdom.TypeInfo)
	case orderdom.StatusShipped:
		uc.notifyBuyer(ctx, o.UserID, "Order Shipped",
			fmt.Sprintf("Your Order #%s has been shipped!", id), notifdom.TypeInfo)
	}
	return nil
}

// VerifyPayment marks the order paid and confirmed.
func (uc *OrderUsecase) VerifyPayment(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := uc.clock.Now()
	paid := orderdom.PaymentPaid
	confirmed := orderdom.StatusConfirmed
	if err := uc.orders.Update(ctx, o.ID.String(), orderdom.Patch{
		PaymentStatus:   &paid,
		Status:          &confirmed,
		PaymentVerified: &now,
	}); err != nil {
		return err
	}
	uc.notifyBuyer(ctx, o.UserID, "Payment Verified",
		fmt.Sprintf("Your payment for Order #%s has been verified. We will process your order shortly.", o.ID), notifdom.TypeSuccess)
	return nil
}

func (uc *OrderUsecase) RejectPayment(ctx context.Context, id, reason string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	r := strings.TrimSpace(reason)
	if r == "" {
		return ErrInvalidArgument
	}
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rejected := orderdom.PaymentRejected
	if err := uc.orders.Update(ctx, o.ID.String(), orderdom.Patch{
		PaymentStatus: &rejected,
		RejectReason:  &r,
	}); err != nil {
		return err
	}
	uc.notifyBuyer(ctx, o.UserID, "Payment Rejected",
		fmt.Sprintf("Your payment for Order #%s was rejected. Reason: %s", o.ID, r), notifdom.TypeError)
	return nil
}

// Ship marks the order shipped with a tracking number.
func (uc *OrderUsecase) Ship(ctx context.Context, id, trackingNumber string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	tn := strings.TrimSpace(trackingNumber)
	if tn == "" {
		return ErrInvalidArgument
	}
	o, err := uc.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := uc.clock.Now()
	shipped := orderdom.StatusShipped
	if err := uc.orders.Update(ctx, o.ID.String(), orderdom.Patch{
		Status:         &shipped,
		TrackingNumber: &tn,
		ShippedAt:      &now,
	}); err != nil {
		return err
	}
	uc.notifyBuyer(ctx, o.UserID, "Order Shipped",
		fmt.Sprintf("Your Order #%s has been shipped! Tracking Number: %s", o.ID, tn), notifdom.TypeInfo)
	return nil
}

func (uc *OrderUsecase) Delete(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return uc.orders.Delete(ctx, id)
}

// ApplyOverduePenalties adds the late fee once to every order unpaid for more
// than a day and tells the buyer. It returns how many orders were charged.
func (uc *OrderUsecase) ApplyOverduePenalties(ctx context.Context) (int, error) {
	list, err := uc.orders.List(ctx, "")
	if err != nil {
		return 0, err
	}
	now := uc.clock.Now()
	charged := 0
	for _, o := range list {
		if !o.PenaltyDue(now) {
			continue
		}
		total := o.Total + orderdom.PenaltyAmount
		applied := true
		if err := uc.orders.Update(ctx, o.ID.String(), orderdom.Patch{Total: &total, PenaltyApplied: &applied}); err != nil {
			uc.log.Warn("penalty update failed", zap.String("orderId", o.ID.String()), zap.Error(err))
			continue
		}
		charged++
		uc.notifyBuyer(ctx, o.UserID, "Late Payment Penalty",
			fmt.Sprintf("Order #%s is overdue (>24h). A penalty of PHP %.2f has been added to your total.", o.ID, orderdom.PenaltyAmount),
			notifdom.TypeWarning)
	}
	if charged > 0 {
		uc.log.Info("overdue penalties applied", zap.Int("orders", charged))
	}
	return charged, nil
}

func (uc *OrderUsecase) notifyBuyer(ctx context.Context, userID, title, msg string, typ notifdom.Type) {
	if uc.notes == nil || strings.TrimSpace(userID) == "" {
		return
	}
	_, err := uc.notes.Add(ctx, notification.UserList, notifdom.Record{
		UserID:  userID,
		Title:   title,
		Message: msg,
		Type:    typ,
		Link:    notification.OrdersPageLink,
	})
	if err != nil {
		uc.log.Warn("buyer notification failed", zap.String("userId", userID), zap.Error(err))
	}
}

func sortNewestFirst(list []orderdom.Order) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].PlacedAt().After(list[j].PlacedAt())
	})
}
