package api

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/chatgraph"
	"github.com/meikuraledutech/chatgraph/format"
	"github.com/meikuraledutech/chatgraph/logger"
	"github.com/meikuraledutech/chatgraph/service"
)

// Handler holds the HTTP handlers.
type Handler struct {
	svc       *service.Service
	log       *logger.Logger
	maxUpload int
}

func NewHandler(svc *service.Service, log *logger.Logger, maxUpload int) *Handler {
	return &Handler{svc: svc, log: log, maxUpload: maxUpload}
}

func invalidBody() error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid body")
}

// ── Datasets ──────────────────────────────────────────────────────

func (h *Handler) ListDatasets(c fiber.Ctx) error {
	names, err := h.svc.ListDatasets(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"datasets": names})
}

func (h *Handler) CreateDataset(c fiber.Ctx) error {
	var d chatgraph.Dataset
	if err := c.Bind().JSON(&d); err != nil {
		return invalidBody()
	}
	if err := h.svc.CreateDataset(c.Context(), &d); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Dataset created", "name": d.Name})
}

func (h *Handler) GetDataset(c fiber.Ctx) error {
	d, err := h.svc.GetDataset(c.Context(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *Handler) UpdateDataset(c fiber.Ctx) error {
	var d chatgraph.Dataset
	if err := c.Bind().JSON(&d); err != nil {
		return invalidBody()
	}
	d.Name = c.Params("name")
	if err := h.svc.UpdateDataset(c.Context(), &d); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Dataset updated"})
}

func (h *Handler) DeleteDataset(c fiber.Ctx) error {
	if err := h.svc.DeleteDataset(c.Context(), c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Items ─────────────────────────────────────────────────────────

func (h *Handler) ListItems(c fiber.Ctx) error {
	names, err := h.svc.ListItems(c.Context(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": names})
}

func (h *Handler) CreateItem(c fiber.Ctx) error {
	var it chatgraph.Item
	if err := c.Bind().JSON(&it); err != nil {
		return invalidBody()
	}
	if err := h.svc.CreateItem(c.Context(), c.Params("name"), it); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Dataset item created", "name": it.Name})
}

func (h *Handler) GetItem(c fiber.Ctx) error {
	it, err := h.svc.GetItem(c.Context(), c.Params("name"), c.Params("item"))
	if err != nil {
		return err
	}
	return c.JSON(it)
}

func (h *Handler) UpdateItem(c fiber.Ctx) error {
	var it chatgraph.Item
	if err := c.Bind().JSON(&it); err != nil {
		return invalidBody()
	}
	if err := h.svc.UpdateItem(c.Context(), c.Params("name"), c.Params("item"), it); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Dataset item updated"})
}

func (h *Handler) DeleteItem(c fiber.Ctx) error {
	if err := h.svc.DeleteItem(c.Context(), c.Params("name"), c.Params("item")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ── Formats ───────────────────────────────────────────────────────

type formatInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (h *Handler) ListFormats(c fiber.Ctx) error {
	adapters := h.svc.Formats()
	out := make([]formatInfo, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, formatInfo{Name: a.Name(), DisplayName: a.DisplayName(), Description: a.Description()})
	}
	return c.JSON(out)
}

// Import takes a multipart form with dataset_name and file.
func (h *Handler) Import(c fiber.Ctx) error {
	dataset := strings.TrimSpace(c.FormValue("dataset_name"))
	if dataset == "" {
		return fiber.NewError(fiber.StatusBadRequest, "dataset_name is required")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	if fh.Size > int64(h.maxUpload) {
		return errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, int64(h.maxUpload)+1))
	if err != nil {
		return err
	}
	if len(raw) > h.maxUpload {
		return errUploadTooLarge
	}

	n, err := h.svc.Import(c.Context(), dataset, c.Params("format"), raw)
	if err != nil {
		h.log.Warn("import rejected", "dataset", dataset, "format", c.Params("format"), "file", fh.Filename, "error", err)
		return err
	}
	return c.JSON(fiber.Map{"message": "Dataset imported", "count": n})
}

type exportRequest struct {
	DatasetName string `json:"dataset_name"`
	Lines       bool   `json:"lines"`
	LeavesOnly  bool   `json:"leaves_only"`
}

func (h *Handler) Export(c fiber.Ctx) error {
	var req exportRequest
	if err := c.Bind().JSON(&req); err != nil || req.DatasetName == "" {
		return invalidBody()
	}
	res, err := h.svc.Export(c.Context(), req.DatasetName, c.Params("format"), format.EncodeOptions{
		Lines:      req.Lines,
		LeavesOnly: req.LeavesOnly,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":     "Dataset exported",
		"download_id": res.ID,
		"url":         "/downloads/" + res.ID,
		"filename":    res.Filename,
	})
}

// ── Downloads ─────────────────────────────────────────────────────

func (h *Handler) Download(c fiber.Ctx) error {
	e, err := h.svc.Download(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	c.Attachment(e.Filename)
	if strings.HasSuffix(e.Filename, ".jsonl") {
		c.Set(fiber.HeaderContentType, "application/x-ndjson")
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return c.Send(e.Payload)
}
