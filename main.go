package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"piggybank/config"
	"piggybank/controllers"
	"piggybank/database"
	"piggybank/middleware"
	"piggybank/services"
	"piggybank/utils"
)

// newEngine собирает HTTP движок: служебные маршруты и /api поверх mux
func newEngine(api http.Handler, limiter *utils.RateLimiter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
	})

	apiGroup := engine.Group("/api", middleware.RateLimit(limiter))
	apiGroup.Any("/*path", gin.WrapH(api))
	return engine
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if err := utils.SetupLogger(cfg.Log.Dir, cfg.Log.Level); err != nil {
		log.Fatalf("Ошибка настройки логгера: %v", err)
	}

	// Инициализируем подключение к базе данных
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	// Письма отправляются только при включенном SMTP
	var mailer services.Mailer
	if cfg.SMTP.Enabled {
		mailer = services.NewEmailService(cfg)
	}

	svc := controllers.NewServices(db.GetDB(), cfg, mailer)
	api := controllers.NewAPI(svc, []byte(cfg.JWT.SecretKey))
	limiter := utils.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newEngine(api.Handler(), limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.LogInfo("Сервер запущен на порту %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.LogInfo("Остановка сервера")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		utils.LogError("Ошибка остановки сервера: %v", err)
	}
}
