package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"library-server/internal/metrics"
	"library-server/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users         service.UserService
	books         service.BookService
	borrows       service.BorrowService
	notifications service.NotificationService
	logger        logrus.FieldLogger
	corsOrigins   []string
	uploadsDir    string
}

type Options struct {
	Users         service.UserService
	Books         service.BookService
	Borrows       service.BorrowService
	Notifications service.NotificationService
	Logger        logrus.FieldLogger
	CORSOrigins   []string
	// UploadsDir is served at /uploads when images are stored on local disk.
	UploadsDir string
}

func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:         opts.Users,
		books:         opts.Books,
		borrows:       opts.Borrows,
		notifications: opts.Notifications,
		logger:        logger,
		corsOrigins:   opts.CORSOrigins,
		uploadsDir:    opts.UploadsDir,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), metricsMiddleware(), corsMiddleware(h.corsOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if h.uploadsDir != "" {
		router.Static("/uploads", h.uploadsDir)
	}

	auth := h.authRequired()
	admin := adminRequired()

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/me", auth, h.me)
		authGroup.PUT("/profile", auth, h.updateProfile)
		authGroup.PUT("/profile/image", auth, h.updateProfileImage)
		authGroup.GET("/users", auth, admin, h.listUsers)
		authGroup.GET("/users/:id", auth, admin, h.getUser)
		authGroup.POST("/users/:id/ban", auth, admin, h.banUser)
		authGroup.POST("/users/:id/unban", auth, admin, h.unbanUser)
	}

	books := router.Group("/books")
	{
		books.GET("/", h.listAvailableBooks)
		books.GET("/all", auth, admin, h.listAllBooks)
		books.GET("/:id", h.getBook)
		books.POST("/", auth, admin, h.createBook)
		books.PUT("/:id", auth, admin, h.updateBook)
		books.DELETE("/:id", auth, admin, h.deleteBook)
		books.POST("/upload-image", auth, admin, h.uploadBookImage)

		books.POST("/borrow", auth, h.borrowBook)
		books.POST("/return", auth, h.returnBook)
		books.GET("/my-borrows", auth, h.myBorrows)
		books.GET("/borrowing-history", auth, h.borrowingHistory)
		books.GET("/pending-requests", auth, admin, h.pendingRequests)
		books.GET("/admin/borrow-records", auth, admin, h.allBorrowRecords)
		books.PUT("/approve-borrow/:id", auth, admin, h.approveBorrow)
		books.PUT("/reject-borrow/:id", auth, admin, h.rejectBorrow)

		books.GET("/notifications", auth, h.listNotifications)
		books.GET("/notifications/unread-count", auth, h.unreadCount)
		books.PUT("/notifications/read-all", auth, h.markAllNotificationsRead)
		books.PUT("/notifications/:id/read", auth, h.markNotificationRead)
		books.DELETE("/notifications/:id", auth, h.deleteNotification)
	}
}

// pathID parses a positive numeric id from the named path parameter.
func pathID(c *gin.Context, name, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+what+" ID format")
		return 0, false
	}
	return id, true
}

// formImage opens the optional image file of a multipart request. The
// returned release func must be called once the upload has been consumed.
func formImage(c *gin.Context, field string) (*service.ImageUpload, func(), error) {
	noop := func() {}
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, noop, nil
	}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return &service.ImageUpload{
		Body:        f,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
	}, func() { _ = f.Close() }, nil
}
