package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/user/darkpool/backend/internal/exchange"
	"github.com/user/darkpool/backend/internal/models"
)

// PairHandler serves pair administration and the read-only market views.
type PairHandler struct {
	Engine *exchange.Engine
}

// CreatePairRequest defines the admin body for creating a market.
type CreatePairRequest struct {
	BaseAsset     string `json:"base_asset"`
	QuoteAsset    string `json:"quote_asset"`
	PriceDecimals uint8  `json:"price_decimals"`
}

// FeeRateRequest sets the taker fee in basis points.
type FeeRateRequest struct {
	Bps uint16 `json:"bps"`
}

// FeeCollectorRequest sets the fee destination account.
type FeeCollectorRequest struct {
	Account uuid.UUID `json:"account"`
}

// CreatePair registers a new market (admin only).
func (h *PairHandler) CreatePair(c *fiber.Ctx) error {
	req := new(CreatePairRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}

	id, err := h.Engine.CreatePair(models.Asset(req.BaseAsset), models.Asset(req.QuoteAsset), req.PriceDecimals)
	if err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"pair_id": id})
}

// TogglePair flips a pair's active flag (admin only).
func (h *PairHandler) TogglePair(c *fiber.Ctx) error {
	pairID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pair ID format"})
	}

	active, err := h.Engine.TogglePair(pairID)
	if err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"pair_id": pairID, "active": active})
}

// SetFeeRate updates the fee rate (admin only).
func (h *PairHandler) SetFeeRate(c *fiber.Ctx) error {
	req := new(FeeRateRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if err := h.Engine.SetFeeRate(req.Bps); err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"fee_rate_bps": req.Bps})
}

// SetFeeCollector updates the fee destination (admin only).
func (h *PairHandler) SetFeeCollector(c *fiber.Ctx) error {
	req := new(FeeCollectorRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse request body"})
	}
	if err := h.Engine.SetFeeCollector(req.Account); err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"fee_collector": req.Account})
}

// GetPair returns one pair.
func (h *PairHandler) GetPair(c *fiber.Ctx) error {
	pairID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pair ID format"})
	}

	pair, err := h.Engine.Pair(pairID)
	if err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(pair)
}

// ListActivePairs returns the ids of active pairs.
func (h *PairHandler) ListActivePairs(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"pair_ids": h.Engine.ActivePairIDs()})
}

// GetPairOrders lists a pair's orders in placement order.
func (h *PairHandler) GetPairOrders(c *fiber.Ctx) error {
	pairID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pair ID format"})
	}
	if _, err := h.Engine.Pair(pairID); err != nil {
		return engineError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(h.Engine.OrdersByPair(pairID))
}
