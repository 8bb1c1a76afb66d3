package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"similarity_engine/internal/auth"
	"similarity_engine/internal/logger"
	"similarity_engine/internal/lookup"
	"similarity_engine/internal/model"
	"similarity_engine/internal/rank"
	"similarity_engine/internal/task"
)

// RequestIDHeader 请求 ID 的 header 名
const RequestIDHeader = "X-Request-ID"

// DefaultRequestTimeout 单次查询的超时
const DefaultRequestTimeout = 10 * time.Second

// Lookup 相似曲目查询，由 lookup.Service 实现
type Lookup interface {
	SimilarTracks(ctx context.Context, id model.ItemID, maxAmount int) ([]model.Item, error)
}

// Server 代表 HTTP API 服务器
type Server struct {
	router  *gin.Engine
	lookup  Lookup
	ranker  *rank.Processor
	tasks   *task.Manager
	tokens  *auth.Registry
	timeout time.Duration

	warmupConcurrency int
}

// NewServer 创建新的 HTTP 服务器
// tokens 为 nil 或为空时 /api/v1 不做鉴权
func NewServer(lk Lookup, ranker *rank.Processor, tm *task.Manager, tokens *auth.Registry, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	s := &Server{
		router:  gin.New(),
		lookup:  lk,
		ranker:  ranker,
		tasks:   tm,
		tokens:  tokens,
		timeout: timeout,

		warmupConcurrency: DefaultWarmupConcurrency,
	}
	s.router.Use(gin.Recovery(), s.requestIDMiddleware(), s.accessLogMiddleware(), s.corsMiddleware())
	s.setupRoutes()
	return s
}

// Handler 返回底层 http.Handler，供 http.Server 使用
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1")

	// 中间件：Token 鉴权
	v1.Use(s.authMiddleware())

	v1.GET("/tracks/:id/similar", s.handleSimilar)
	v1.POST("/rank", s.handleRank)
	v1.POST("/warmup", s.handleWarmup)
	v1.GET("/tasks/:id", s.handleTask)
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware 透传或生成请求 ID
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString("request_id"),
			"principal", principalID(c),
		)
	}
}

// authMiddleware 鉴权中间件
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.tokens.Enabled() {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		p, err := s.tokens.Lookup(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		// 将调用方信息存入 Context
		c.Set("principal", p)
		c.Next()
	}
}

// principalID 返回鉴权通过的调用方 ID，未鉴权时为空
func principalID(c *gin.Context) string {
	if v, ok := c.Get("principal"); ok {
		if p, ok := v.(*auth.Principal); ok {
			return p.ID
		}
	}
	return ""
}

// handleSimilar 查询相似曲目
// GET /api/v1/tracks/:id/similar?max=N
func (s *Server) handleSimilar(c *gin.Context) {
	id := c.Param("id")

	maxAmount := lookup.DefaultMaxAmount
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("max must be an integer, got %q", raw)})
			return
		}
		maxAmount = n
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	items, err := s.lookup.SimilarTracks(ctx, model.ItemID(id), maxAmount)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    id,
		"items": items,
	})
}

type RankRequest struct {
	Items []model.Item `json:"items"`
	Top   *int         `json:"top"` // 为空时使用默认值
}

// handleRank 对请求中的条目做 top-K
// POST /api/v1/rank
func (s *Server) handleRank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	var (
		items []model.Item
		err   error
	)
	if req.Top == nil {
		items = s.ranker.Process(req.Items)
	} else {
		items, err = rank.TopK(req.Items, *req.Top)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type WarmupRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// handleWarmup 异步预热缓存
// POST /api/v1/warmup
func (s *Server) handleWarmup(c *gin.Context) {
	var req WarmupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must not be empty"})
		return
	}

	ids := append([]string(nil), req.IDs...)
	t := s.tasks.Run(c.Request.Context(), func(ctx context.Context) (any, error) {
		return s.warmup(ctx, ids)
	})

	c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID})
}

// handleTask 查询异步任务状态
// GET /api/v1/tasks/:id
func (s *Server) handleTask(c *gin.Context) {
	t, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed",
			"path", c.Request.URL.Path,
			"request_id", c.GetString("request_id"),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound), errors.Is(err, task.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
