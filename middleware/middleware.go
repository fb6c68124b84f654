package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"piggybank/utils"
)

const requestIDHeader = "X-Request-ID"

// RequestID присваивает запросу идентификатор, если клиент его не передал
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RateLimit middleware для ограничения частоты запросов
func RateLimit(limiter *utils.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Получаем IP-адрес клиента
		clientIP := c.ClientIP()

		// Проверяем лимит
		if !limiter.Allow(clientIP) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"reset": limiter.GetResetTime(clientIP),
			})
			c.Abort()
			return
		}

		// Добавляем заголовки с информацией о лимитах
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.GetRemaining(clientIP)))
		c.Header("X-RateLimit-Reset", limiter.GetResetTime(clientIP).UTC().Format(time.RFC3339))

		c.Next()
	}
}

// Logger middleware для логирования запросов и учета их в метриках
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Начало запроса
		startTime := time.Now()

		// Обработка запроса
		c.Next()

		// Время выполнения
		duration := time.Since(startTime)
		status := c.Writer.Status()

		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		} else if status >= http.StatusInternalServerError {
			err = fmt.Errorf("HTTP %d", status)
		}
		utils.GetMetrics().RecordRequest(duration, err)

		l := utils.Logger()
		event := l.Info()
		if status >= http.StatusInternalServerError {
			event = l.Error()
		}
		event.
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Msg("request")

		// Логируем ошибки
		for _, e := range c.Errors {
			utils.LogError("Error: %v", e)
		}
	}
}

// Recovery middleware для обработки паник
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// Логируем панику
				utils.LogError("Panic recovered: %v", err)

				// Отправляем ответ клиенту
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
			}
		}()

		c.Next()
	}
}

// CORSMiddleware middleware для CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
