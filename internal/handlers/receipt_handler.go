package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/unipet/billing-engine/internal/dto"
	"github.com/unipet/billing-engine/internal/receipts"
)

type ReceiptHandler struct {
	generator *receipts.Generator
}

func NewReceiptHandler(generator *receipts.Generator) *ReceiptHandler {
	return &ReceiptHandler{generator: generator}
}

// Download redirects to a signed URL, or streams the PDF when the object
// store is bypassed or the document had to be rebuilt. ?redirect=false
// returns the URL as JSON instead.
func (h *ReceiptHandler) Download(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	d, err := h.generator.Open(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	if d.URL != "" {
		if c.Query("redirect") == "false" {
			return c.JSON(dto.DownloadResponse{Receipt: d.Receipt, URL: d.URL})
		}
		return c.Redirect(d.URL, fiber.StatusFound)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", d.Receipt.FileName))
	return c.Send(d.Data)
}

func (h *ReceiptHandler) MarkSent(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	r, err := h.generator.MarkSent(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(r)
}

func (h *ReceiptHandler) List(c *fiber.Ctx) error {
	list, err := h.generator.ListByClientEmail(c.UserContext(), c.Query("email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ReceiptListResponse{Receipts: list, Count: len(list)})
}
