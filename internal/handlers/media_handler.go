package handlers

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/driftline/driftline-backend/internal/httpx"
	"github.com/driftline/driftline-backend/internal/service"
	"github.com/driftline/driftline-backend/internal/storage"
)

type MediaHandler struct {
	store       *storage.S3Storage
	userService *service.UserService
}

func NewMediaHandler(store *storage.S3Storage, userService *service.UserService) *MediaHandler {
	return &MediaHandler{store: store, userService: userService}
}

func (h *MediaHandler) readUpload(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, errors.New("missing image file")
	}
	if fh.Size > storage.MaxImageBytes {
		return nil, errors.New("image too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("unreadable image file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, storage.MaxImageBytes+1))
	if err != nil {
		return nil, errors.New("unreadable image file")
	}
	if len(data) > storage.MaxImageBytes {
		return nil, errors.New("image too large")
	}
	return data, nil
}

// UploadImage accepts a multipart image, normalizes it to JPEG and stores
// it. The returned key is what a client puts in a message's image field.
func (h *MediaHandler) UploadImage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	data, err := h.readUpload(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_upload", err.Error())
	}

	processed, err := storage.ProcessMessageImage(data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return httpx.BadRequest(c, "invalid_upload", "Unsupported image format")
		}
		return httpx.BadRequest(c, "invalid_upload", "Could not process image")
	}

	key := fmt.Sprintf("messages/%d/%s.jpg", userID, uuid.NewString())
	if _, err := h.store.PutObject(c.Context(), key, bytes.NewReader(processed), int64(len(processed)), "image/jpeg"); err != nil {
		log.Printf("media: put %s failed: %v", key, err)
		return httpx.Internal(c, "upload_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"image": key})
}

// UploadAvatar replaces the caller's profile avatar.
func (h *MediaHandler) UploadAvatar(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	data, err := h.readUpload(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_upload", err.Error())
	}

	processed, err := storage.ProcessAvatarImage(data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return httpx.BadRequest(c, "invalid_upload", "Unsupported image format")
		}
		return httpx.BadRequest(c, "invalid_upload", "Could not process image")
	}

	key := fmt.Sprintf("avatars/%d/%s.jpg", userID, uuid.NewString())
	if _, err := h.store.PutObject(c.Context(), key, bytes.NewReader(processed), int64(len(processed)), "image/jpeg"); err != nil {
		log.Printf("media: put %s failed: %v", key, err)
		return httpx.Internal(c, "upload_failed")
	}

	user, err := h.userService.UpdateAvatar(userID, key)
	if err != nil {
		return httpx.FromService(c, err, "upload_failed")
	}
	return c.JSON(fiber.Map{"user": user.ToResponse()})
}

// GetObject streams a stored image back with ETag revalidation.
func (h *MediaHandler) GetObject(c *fiber.Ctx) error {
	key, err := storage.SafeObjectKey("", c.Params("*"))
	if err != nil {
		return httpx.BadRequest(c, "invalid_key", "Invalid object key")
	}

	obj, stat, err := h.store.GetObject(c.Context(), key)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return httpx.NotFound(c, "object_not_found", "Not found")
		}
		log.Printf("media: get %s failed: %v", key, err)
		return httpx.Internal(c, "fetch_failed")
	}

	etag := `"` + stat.ETag + `"`
	if c.Get(fiber.HeaderIfNoneMatch) == etag {
		_ = obj.Close()
		c.Set(fiber.HeaderETag, etag)
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, stat.ContentType)
	c.Set(fiber.HeaderETag, etag)
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	c.Set(fiber.HeaderContentLength, fmt.Sprintf("%d", stat.Size))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer obj.Close()
		if _, err := io.Copy(w, obj); err != nil {
			log.Printf("media: stream %s interrupted: %v", key, err)
		}
	})
	return nil
}
