package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library-server/internal/service"
)

func (h *Handler) listAvailableBooks(c *gin.Context) {
	books, err := h.books.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booksToResponse(books))
}

func (h *Handler) listAllBooks(c *gin.Context) {
	books, err := h.books.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booksToResponse(books))
}

func (h *Handler) getBook(c *gin.Context) {
	id, ok := pathID(c, "id", "book")
	if !ok {
		return
	}
	book, err := h.books.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookToResponse(*book))
}

func (h *Handler) createBook(c *gin.Context) {
	var in service.BookInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, "Invalid book data")
		return
	}
	image, release, err := formImage(c, "image")
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer release()

	book, err := h.books.Create(c.Request.Context(), in, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book added successfully", "book": bookToResponse(*book)})
}

func (h *Handler) updateBook(c *gin.Context) {
	id, ok := pathID(c, "id", "book")
	if !ok {
		return
	}
	var in service.BookInput
	if err := c.ShouldBind(&in); err != nil {
		badRequest(c, "Invalid book data")
		return
	}
	image, release, err := formImage(c, "image")
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer release()

	book, err := h.books.Update(c.Request.Context(), id, in, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book updated successfully", "book": bookToResponse(*book)})
}

func (h *Handler) deleteBook(c *gin.Context) {
	id, ok := pathID(c, "id", "book")
	if !ok {
		return
	}
	if err := h.books.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}

func (h *Handler) uploadBookImage(c *gin.Context) {
	image, release, err := formImage(c, "image")
	if err != nil {
		badRequest(c, "Invalid image upload")
		return
	}
	defer release()
	if image == nil {
		badRequest(c, "image file is required")
		return
	}

	url, err := h.books.UploadImage(c.Request.Context(), *image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}
