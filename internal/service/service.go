package service

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"library-server/internal/domain"
	"library-server/internal/events"
	"library-server/internal/storage"
)

// ImageUpload is an image received from a client, not yet stored.
type ImageUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateInput runs struct validation and reports the first failing field
// as a domain validation error.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.Validationf("Invalid input")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return domain.Validationf("%s is required", fe.Field())
	case "email":
		return domain.Validationf("%s must be a valid email address", fe.Field())
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return domain.Validationf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return domain.Validationf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return domain.Validationf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return domain.Validationf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return domain.Validationf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return domain.Validationf("%s is invalid", fe.Field())
	}
}

// emitter publishes events best effort.
type emitter struct {
	publisher events.Publisher
	logger    logrus.FieldLogger
}

func (e emitter) emit(ctx context.Context, ev events.Event) {
	if e.publisher == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.WithError(err).WithField("event", ev.Type).Warn("publish event")
	}
}

// storeImage validates and uploads an image under <prefix>/<kind>/.
func storeImage(ctx context.Context, store storage.Service, prefix, kind string, img ImageUpload) (string, error) {
	if store == nil {
		return "", errors.New("image storage is not configured")
	}
	key, err := storage.ImageKey(prefix, kind, img.ContentType, img.Size)
	if err != nil {
		return "", err
	}
	return store.Upload(ctx, key, img.Body, img.Size, img.ContentType)
}

// dropImage deletes a stored image, logging failures.
func dropImage(ctx context.Context, store storage.Service, logger logrus.FieldLogger, url string) {
	if store == nil || url == "" {
		return
	}
	if err := store.Delete(ctx, url); err != nil {
		logger.WithError(err).WithField("url", url).Warn("delete stored image")
	}
}
