package handler

import (
	"errors"
	"mime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Jagadeesh-777/patient-docs-portal/internal/service"
)

// uploadResponse is the body returned on successful upload.
type uploadResponse struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Filesize  int64     `json:"filesize"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// UploadDocument handles POST /documents/upload (multipart/form-data, field name: file).
//
// @Summary Upload a PDF document
// @Accept mpfd
// @Produce json
// @Param file formData file true "PDF file, max 10 MiB"
// @Success 201 {object} uploadResponse
// @Router /documents/upload [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get(fiber.HeaderContentType)
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := svc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidMediaType):
				return writeError(c, fiber.StatusBadRequest, "INVALID_MEDIA_TYPE", "only PDF files are allowed")
			case errors.Is(err, service.ErrPayloadTooLarge):
				return writeError(c, fiber.StatusBadRequest, "PAYLOAD_TOO_LARGE", "file exceeds upload size limit")
			case errors.Is(err, service.ErrIOFailure):
				return writeError(c, fiber.StatusInternalServerError, "IO_FAILURE", "failed to store file")
			case errors.Is(err, service.ErrMetadataWrite):
				return writeError(c, fiber.StatusInternalServerError, "METADATA_WRITE_FAILURE", "failed to save metadata")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		return c.Status(fiber.StatusCreated).JSON(uploadResponse{
			ID:        doc.ID,
			Filename:  doc.Filename,
			Filesize:  doc.Size,
			CreatedAt: doc.CreatedAt,
			Message:   "File uploaded successfully",
		})
	}
}

// ListDocuments handles GET /documents.
//
// @Summary List stored documents, most recent first
// @Produce json
// @Success 200 {array} model.Document
// @Router /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		docs, err := svc.List(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "METADATA_READ_FAILURE", "failed to fetch documents")
		}
		return c.JSON(docs)
	}
}

// DownloadDocument handles GET /documents/:id, streaming the stored bytes as
// an attachment named after the original upload.
//
// @Summary Download a document
// @Produce application/pdf
// @Param id path int true "Document ID"
// @Router /documents/{id} [get]
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		rc, doc, err := svc.Fetch(c.UserContext(), id)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			case errors.Is(err, service.ErrBlobMissing):
				return writeError(c, fiber.StatusInternalServerError, "BLOB_MISSING", "stored file is missing")
			default:
				return writeError(c, fiber.StatusInternalServerError, "IO_FAILURE", "failed to read file")
			}
		}

		// fasthttp closes the body stream when it implements io.Closer.
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition,
			mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
		return c.SendStream(rc, int(doc.Size))
	}
}

// DeleteDocument handles DELETE /documents/:id.
//
// @Summary Delete a document
// @Produce json
// @Param id path int true "Document ID"
// @Success 200 {object} messageResponse
// @Router /documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		if err := svc.Delete(c.UserContext(), id); err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			case errors.Is(err, service.ErrIOFailure):
				return writeError(c, fiber.StatusInternalServerError, "IO_FAILURE", "failed to delete file")
			default:
				return writeError(c, fiber.StatusInternalServerError, "METADATA_WRITE_FAILURE", "failed to delete metadata")
			}
		}

		return c.JSON(messageResponse{Message: "Document deleted successfully"})
	}
}
