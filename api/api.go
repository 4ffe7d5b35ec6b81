// Package api exposes the dataset service over HTTP using fiber.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/chatgraph"
	"github.com/meikuraledutech/chatgraph/cache"
	"github.com/meikuraledutech/chatgraph/format"
	"github.com/meikuraledutech/chatgraph/logger"
	"github.com/meikuraledutech/chatgraph/service"
)

var errUploadTooLarge = errors.New("chatgraph: upload too large")

// Config configures NewApp.
type Config struct {
	// AuthToken guards every route except downloads. Empty disables the check.
	AuthToken      string
	MaxUploadBytes int
}

// multipart framing on top of the file itself
const uploadSlack = 64 << 10

// NewApp builds the fiber app with request logging, error mapping and every route.
func NewApp(svc *service.Service, log *logger.Logger, cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "chatgraph",
		BodyLimit:    cfg.MaxUploadBytes + uploadSlack,
		ErrorHandler: errorHandler,
		// Params and form values outlive the request as store and lock keys.
		Immutable: true,
	})
	app.Use(requestLogger(log))

	h := NewHandler(svc, log.With("component", "api"), cfg.MaxUploadBytes)
	Register(app, h, requireToken(cfg.AuthToken))
	return app
}

// Register mounts every route on r. auth guards all of them except downloads,
// whose ids are unguessable and handed out by an authenticated export.
func Register(r fiber.Router, h *Handler, auth fiber.Handler) {
	r.Get("/downloads/:id", h.Download)

	ds := r.Group("/datasets", auth)
	ds.Get("/", h.ListDatasets)
	ds.Post("/", h.CreateDataset)
	ds.Get("/:name", h.GetDataset)
	ds.Put("/:name", h.UpdateDataset)
	ds.Delete("/:name", h.DeleteDataset)
	ds.Get("/:name/items", h.ListItems)
	ds.Post("/:name/items", h.CreateItem)
	ds.Get("/:name/items/:item", h.GetItem)
	ds.Put("/:name/items/:item", h.UpdateItem)
	ds.Delete("/:name/items/:item", h.DeleteItem)

	fm := r.Group("/formats", auth)
	fm.Get("/", h.ListFormats)
	fm.Post("/:format/import", h.Import)
	fm.Post("/:format/export", h.Export)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, chatgraph.ErrNotFound),
		errors.Is(err, cache.ErrNotFound),
		errors.Is(err, format.ErrUnknownFormat):
		return fiber.StatusNotFound
	case errors.Is(err, cache.ErrExpired):
		return fiber.StatusGone
	case errors.Is(err, chatgraph.ErrDatasetExists),
		errors.Is(err, chatgraph.ErrItemExists):
		return fiber.StatusConflict
	case errors.Is(err, format.ErrUnrecognizedFormat),
		errors.Is(err, format.ErrSchemaValidation),
		chatgraph.IsStructural(err):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidName):
		return fiber.StatusBadRequest
	case errors.Is(err, errUploadTooLarge):
		return fiber.StatusRequestEntityTooLarge
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}

	var se *format.SchemaError
	if errors.As(err, &se) {
		body["detail"] = se.Details()
	}
	var ge *chatgraph.GraphError
	if errors.As(err, &ge) {
		body["item"] = ge.Item
		body["node"] = ge.Index
		if ge.HasTarget {
			body["target"] = ge.Target
		}
	}
	return c.Status(statusOf(err)).JSON(body)
}
