package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"library-server/internal/domain"
)

type borrowRequest struct {
	BookID     int64 `json:"book_id"`
	BorrowDays int   `json:"borrow_days"`
}

type returnRequest struct {
	BorrowID int64 `json:"borrow_id"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) borrowBook(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.BookID <= 0 {
		badRequest(c, "Invalid book ID format")
		return
	}

	receipt, err := h.borrows.RequestBorrow(c.Request.Context(), currentUser(c), req.BookID, req.BorrowDays)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Borrow request submitted successfully",
		"receipt": receiptToResponse(*receipt),
	})
}

func (h *Handler) returnBook(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if req.BorrowID <= 0 {
		badRequest(c, "Invalid borrow ID format")
		return
	}

	rec, err := h.borrows.Return(c.Request.Context(), currentUser(c), req.BorrowID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Book returned successfully",
		"fine_amount": rec.FineAmount,
		"record":      recordToResponse(*rec),
	})
}

func (h *Handler) approveBorrow(c *gin.Context) {
	id, ok := pathID(c, "id", "borrow")
	if !ok {
		return
	}
	rec, err := h.borrows.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Borrow request approved", "record": recordToResponse(*rec)})
}

func (h *Handler) rejectBorrow(c *gin.Context) {
	id, ok := pathID(c, "id", "borrow")
	if !ok {
		return
	}
	// the body is optional; the admin client sends none
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body")
		return
	}

	rec, err := h.borrows.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Borrow request rejected", "record": recordToResponse(*rec)})
}

func (h *Handler) myBorrows(c *gin.Context) {
	records, err := h.borrows.MyActive(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordsToResponse(records))
}

func (h *Handler) borrowingHistory(c *gin.Context) {
	records, err := h.borrows.History(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordsToResponse(records))
}

func (h *Handler) pendingRequests(c *gin.Context) {
	records, err := h.borrows.Pending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordsToResponse(records))
}

func (h *Handler) allBorrowRecords(c *gin.Context) {
	status := domain.BorrowStatus(c.Query("status"))
	records, err := h.borrows.All(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordsToResponse(records))
}
