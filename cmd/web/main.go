package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin728/ginblog/internal/auth"
	"github.com/gin728/ginblog/internal/cache"
	"github.com/gin728/ginblog/internal/db"
	"github.com/gin728/ginblog/internal/search"
	"github.com/gin728/ginblog/internal/service"
	"github.com/gin728/ginblog/internal/session"
	"github.com/gin728/ginblog/internal/store"
	"github.com/joho/godotenv"
	chromem "github.com/philippgille/chromem-go"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	database := db.InitDB(envOr("DATABASE_PATH", "ginblog.db"))
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	postCache, err := cache.Open(envOr("CACHE_PATH", "data/cache"))
	if err != nil {
		log.Fatal("Failed to open cache:", err)
	}
	defer postCache.Close()

	embed := chromem.NewEmbeddingFuncOpenAI(os.Getenv("OPENAI_API_KEY"), chromem.EmbeddingModelOpenAI3Small)
	index, err := search.Open(envOr("INDEX_PATH", "data/index"), embed)
	if err != nil {
		log.Fatal("Failed to open search index:", err)
	}

	userStore := store.NewUserStore(database)

	app := &application{
		db:            database,
		sessions:      session.NewManager(store.NewSessionStore(database), userStore),
		providers:     auth.LoadProviders(),
		orchestrator:  auth.NewOrchestrator(userStore),
		users:         userStore,
		posts:         service.NewPostService(database, store.NewPostStore(database), postCache, index),
		music:         store.NewMusicStore(database),
		comments:      store.NewCommentStore(database),
		index:         index,
		secureCookies: os.Getenv("ENV") == "production",
	}

	addr := envOr("ADDR", ":8080")
	log.Println("Server starting on", addr)
	if err := http.ListenAndServe(addr, newRouter(app)); err != nil {
		log.Fatal(err)
	}
}
