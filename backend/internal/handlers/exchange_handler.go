package handlers

import (
	"encoding/base64"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/user/darkpool/backend/internal/exchange"
	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/oracle"
)

// ExchangeHandler serves the trading surface: deposits, withdrawals,
// orders, balance reveals and the oracle callback.
type ExchangeHandler struct {
	Engine *exchange.Engine
}

// DepositRequest carries a sealed amount. Ciphertext and proof are
// base64; Transferred is the observable native transfer leg and is
// ignored for non-native assets.
type DepositRequest struct {
	Asset       string `json:"asset"`
	Ciphertext  string `json:"ciphertext"`
	Proof       string `json:"proof"`
	Transferred uint64 `json:"transferred"`
}

// WithdrawRequest carries a sealed amount to debit and pay out.
type WithdrawRequest struct {
	Asset      string `json:"asset"`
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"proof"`
}

// PlaceOrderRequest carries sealed amount and price with their proofs.
type PlaceOrderRequest struct {
	PairID           uint64 `json:"pair_id"`
	Side             string `json:"side"`
	AmountCiphertext string `json:"amount_ciphertext"`
	AmountProof      string `json:"amount_proof"`
	PriceCiphertext  string `json:"price_ciphertext"`
	PriceProof       string `json:"price_proof"`
}

// BalanceRevealRequest names the asset whose balance should be revealed.
type BalanceRevealRequest struct {
	Asset string `json:"asset"`
}

// RevealCallbackRequest is the oracle authority's answer to a decrypt
// request. Proofs are base64.
type RevealCallbackRequest struct {
	RequestID uuid.UUID `json:"request_id"`
	Value     uint64    `json:"value"`
	Proofs    []string  `json:"proofs"`
}

// Deposit credits the caller's ledger balance.
func (h *ExchangeHandler) Deposit(c *fiber.Ctx) error {
	account, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(DepositRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Asset is required"})
	}
	ct, proof, err := decodeSealedInput(req.Ciphertext, req.Proof)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.Engine.Deposit(c.Context(), account, models.Asset(req.Asset), ct, proof, req.Transferred); err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Deposit accepted"})
}

// Withdraw debits the caller's ledger balance; the payout completes when
// the oracle answers.
func (h *ExchangeHandler) Withdraw(c *fiber.Ctx) error {
	account, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(WithdrawRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Asset is required"})
	}
	ct, proof, err := decodeSealedInput(req.Ciphertext, req.Proof)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.Engine.Withdraw(c.Context(), account, models.Asset(req.Asset), ct, proof); err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Withdrawal accepted"})
}

// PlaceOrder creates an order and triggers one match attempt.
func (h *ExchangeHandler) PlaceOrder(c *fiber.Ctx) error {
	account, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(PlaceOrderRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	side := models.Side(req.Side)
	if side != models.SideBuy && side != models.SideSell {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid side, must be 'buy' or 'sell'"})
	}
	amountCt, amountProof, err := decodeSealedInput(req.AmountCiphertext, req.AmountProof)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount: " + err.Error()})
	}
	priceCt, priceProof, err := decodeSealedInput(req.PriceCiphertext, req.PriceProof)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price: " + err.Error()})
	}

	id, err := h.Engine.PlaceOrder(c.Context(), account, req.PairID, side, amountCt, amountProof, priceCt, priceProof)
	if err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"order_id": id})
}

// CancelOrder cancels the caller's order and releases its reservation.
func (h *ExchangeHandler) CancelOrder(c *fiber.Ctx) error {
	account, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID format"})
	}

	if err := h.Engine.CancelOrder(account, orderID); err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Order cancelled successfully"})
}

// GetOrders lists the caller's orders.
func (h *ExchangeHandler) GetOrders(c *fiber.Ctx) error {
	account, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}
	return c.Status(fiber.StatusOK).JSON(h.Engine.OrdersByAccount(account))
}

// GetOrderByID returns one of the caller's orders.
func (h *ExchangeHandler) GetOrderByID(c *fiber.Ctx) error {
	account, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID format"})
	}

	order, err := h.Engine.Order(orderID)
	if err != nil {
		return engineError(c, err)
	}
	if order.Account != account {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have permission to view this order"})
	}
	return c.Status(fiber.StatusOK).JSON(order)
}

// RequestBalanceReveal starts an asynchronous balance inspection. The
// result arrives on the event feed, not in this response.
func (h *ExchangeHandler) RequestBalanceReveal(c *fiber.Ctx) error {
	account, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID in token"})
	}

	req := new(BalanceRevealRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if req.Asset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Asset is required"})
	}

	if err := h.Engine.RequestBalanceReveal(account, models.Asset(req.Asset)); err != nil {
		return engineError(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// RevealCallback receives the oracle authority's answer. The route is
// unauthenticated; signature verification is the gate.
func (h *ExchangeHandler) RevealCallback(c *fiber.Ctx) error {
	req := new(RevealCallbackRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	proofs := make([][]byte, 0, len(req.Proofs))
	for _, p := range req.Proofs {
		raw, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid proof encoding"})
		}
		proofs = append(proofs, raw)
	}

	if err := h.Engine.RevealCallback(c.Context(), req.RequestID, req.Value, proofs); err != nil {
		log.Warn().Err(err).Stringer("request_id", req.RequestID).Msg("reveal callback rejected")
		return engineError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func decodeSealedInput(ciphertext, proof string) ([]byte, []byte, error) {
	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, nil, errors.New("invalid ciphertext encoding")
	}
	pf, err := base64.StdEncoding.DecodeString(proof)
	if err != nil {
		return nil, nil, errors.New("invalid proof encoding")
	}
	return ct, pf, nil
}

// engineError maps engine and oracle error kinds onto HTTP statuses.
func engineError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrInvalidOrder):
		status = fiber.StatusNotFound
	case errors.Is(err, exchange.ErrNotOwner):
		status = fiber.StatusForbidden
	case errors.Is(err, exchange.ErrInvalidPair),
		errors.Is(err, exchange.ErrOrderNotActive),
		errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, exchange.ErrInvalidProof),
		errors.Is(err, exchange.ErrInvalidConfiguration):
		status = fiber.StatusBadRequest
	case errors.Is(err, oracle.ErrSignatureVerification):
		status = fiber.StatusUnauthorized
	case errors.Is(err, oracle.ErrUnknownRequest):
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
