package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/pkg/rabbitmq"

	"github.com/go-playground/validator/v10"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Command operations.
const (
	OpAddProduct = "add_product"
	OpUpdateQty  = "update_qty"
)

// Command is a catalog write received from the command queue.
type Command struct {
	Op        string        `json:"op" validate:"required,oneof=add_product update_qty"`
	Product   models.Record `json:"product" validate:"required_if=Op add_product"`
	ProductID *int64        `json:"product_id" validate:"required_if=Op update_qty"`
	Qty       *int          `json:"qty" validate:"required_if=Op update_qty"`
}

// Catalog is the part of the product catalog the worker drives.
type Catalog interface {
	AddProduct(ctx context.Context, rec models.Record) error
	UpdateQty(ctx context.Context, id int64, qty int) error
}

// CommandHandler applies queued commands to the catalog.
type CommandHandler struct {
	catalog  Catalog
	validate *validator.Validate
	log      *zap.Logger
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(catalog Catalog, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		catalog:  catalog,
		validate: validator.New(),
		log:      log,
	}
}

// HandleDelivery adapts Handle to the RabbitMQ consumer.
func (h *CommandHandler) HandleDelivery(ctx context.Context, msg amqp.Delivery) error {
	return h.Handle(ctx, msg.Body)
}

// Handle decodes, validates and applies one command. Errors that retrying
// cannot fix wrap rabbitmq.ErrReject.
func (h *CommandHandler) Handle(ctx context.Context, body []byte) error {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return fmt.Errorf("%w: invalid command body: %w", rabbitmq.ErrReject, err)
	}

	if err := h.validate.Struct(cmd); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, e := range validationErrors {
				h.log.Debug("command validation failed",
					zap.String("field", e.Field()),
					zap.String("tag", e.Tag()),
				)
			}
		}
		return fmt.Errorf("%w: invalid %q command: %w", rabbitmq.ErrReject, cmd.Op, err)
	}

	var err error
	switch cmd.Op {
	case OpAddProduct:
		err = h.catalog.AddProduct(ctx, cmd.Product)
	case OpUpdateQty:
		err = h.catalog.UpdateQty(ctx, *cmd.ProductID, *cmd.Qty)
	}
	if err != nil {
		if permanent(err) {
			return fmt.Errorf("%w: %s: %w", rabbitmq.ErrReject, cmd.Op, err)
		}
		return fmt.Errorf("%s: %w", cmd.Op, err)
	}

	h.log.Info("command applied", zap.String("op", cmd.Op))
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, models.ErrMissingField) ||
		errors.Is(err, models.ErrNegativeQuantity) ||
		errors.Is(err, models.ErrInvalidValue) ||
		errors.Is(err, repositories.ErrProductNotFound)
}
