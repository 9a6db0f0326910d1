package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/config"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/jobs"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

type Handler struct {
	db     *pgxpool.Pool
	store  *jobs.Store
	runner *jobs.Runner
	secret string
	logger *zap.Logger
}

func NewHandler(db *pgxpool.Pool, store *jobs.Store, runner *jobs.Runner, secret string, logger *zap.Logger) *Handler {
	return &Handler{
		db:     db,
		store:  store,
		runner: runner,
		secret: secret,
		logger: logger,
	}
}

// Auth Handlers

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	var userID int64
	err = h.db.QueryRow(c.Request.Context(),
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		req.Email, string(hash)).Scan(&userID)

	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user created", "id": userID})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID int64
	var hash string
	err := h.db.QueryRow(c.Request.Context(),
		"SELECT id, password_hash FROM users WHERE email = $1", req.Email).Scan(&userID, &hash)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := GenerateToken(h.secret, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Data Handlers

func (h *Handler) GetHistoryBars(c *gin.Context) {
	symbol := c.Param("symbol")

	rows, err := h.db.Query(c.Request.Context(),
		"SELECT time, symbol, open, high, low, close, volume FROM bars WHERE symbol = $1 ORDER BY time DESC LIMIT 100",
		symbol)
	if err != nil {
		h.logger.Error("failed to query bars", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	defer rows.Close()

	bars := make([]model.Bar, 0)
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Timestamp, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			h.logger.Error("failed to scan bar", zap.Error(err))
			continue
		}
		bars = append(bars, b)
	}

	c.JSON(http.StatusOK, bars)
}

// Backtest Handlers

func (h *Handler) SubmitBacktest(c *gin.Context) {
	var req struct {
		Config config.StrategyConfig `json:"config" binding:"required"`
		Start  time.Time             `json:"start" binding:"required"`
		End    time.Time             `json:"end" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Config.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.End.After(req.Start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be after start"})
		return
	}

	job := h.store.Create(req.Config, req.Start, req.End)
	if err := h.runner.Submit(job.ID); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (h *Handler) GetBacktestStatus(c *gin.Context) {
	job, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) GetBacktestResults(c *gin.Context) {
	job, err := h.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if job.Status != jobs.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "job not completed", "status": job.Status})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":       job.ID,
		"report":       job.Report,
		"summary":      job.Result.Summary,
		"equity_curve": job.Result.EquityCurve,
		"trade_log":    job.Result.TradeLog,
	})
}
