package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-access/internal/config"
	"github.com/iliyamo/identity-access/internal/database"
	"github.com/iliyamo/identity-access/internal/handler"
	"github.com/iliyamo/identity-access/internal/repository"
	"github.com/iliyamo/identity-access/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis: connection failed, token store unavailable")
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	perms := repository.NewPermissionRepo(db)
	tokens := repository.NewTokenRepo(rdb)

	auth := handler.NewAuthHandler(cfg, users, roles, tokens)
	userH := handler.NewUserHandler(users)
	roleH := handler.NewRoleHandler(roles)
	permH := handler.NewPermissionHandler(perms)

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, cfg, rdb)
	router.RegisterAdmin(e, userH, roleH, permH, roles, cfg, tokens, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
