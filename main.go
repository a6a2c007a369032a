package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"estudiantes-gateway/config"
	"estudiantes-gateway/db"
	"estudiantes-gateway/gateway"
	"estudiantes-gateway/handlers"
	"estudiantes-gateway/notion"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	provider := notion.NewClient(notion.Options{
		Token:      cfg.NotionToken,
		DatabaseID: cfg.NotionDatabaseID,
		Timeout:    cfg.NotionTimeout,
	})

	// The journal is optional; without REDIS_ADDR the gateway runs without it
	var journal gateway.Journal
	if cfg.RedisAddr != "" {
		redisClient, err := db.InitializeRedisClient(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		journal = db.NewRedisJournal(redisClient, cfg.JournalMax)
	} else {
		log.Println("REDIS_ADDR not set, activity journal disabled")
	}

	apiHandler := handlers.NewAPIHandler(gateway.New(provider, journal))

	router := gin.Default()
	router.Use(handlers.RequestID())
	apiHandler.Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Servidor corriendo en http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shut down: %v", err)
	}
}
