package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legitheque.org/internal/audit"
	"legitheque.org/internal/filestore"
	"legitheque.org/internal/httpapi"
	"legitheque.org/internal/identity"
	"legitheque.org/internal/obs"
	"legitheque.org/internal/portal"
	"legitheque.org/internal/store/memory"
	"legitheque.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = ""
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	if os.Getenv("LEGITHEQUE_AUTH_SECRET") == "" {
		log.Fatal("LEGITHEQUE_AUTH_SECRET is required")
	}

	var (
		db          *sql.DB
		sectorStore portal.SectorStore
		levelStore  portal.LegalLevelStore
		menuStore   portal.MenuStore
		docStore    portal.DocumentStore
		userStore   portal.UserStore
		credStore   identity.CredentialStore
		auditStore  audit.Store
	)
	if dsn := os.Getenv("LEGITHEQUE_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = pgStore.DB()
		sectorStore = pgStore
		levelStore = pgStore
		menuStore = pgStore
		docStore = pgStore
		userStore = pgStore
		credStore = pgStore
		auditStore = pgStore
	} else {
		log.Print("LEGITHEQUE_PG_DSN not set, using in-memory store; data will not survive restarts")
		mem := memory.New()
		sectorStore = mem
		levelStore = mem
		menuStore = mem
		docStore = mem
		userStore = mem
		credStore = mem
		auditStore = mem
	}

	uploadDir := os.Getenv("LEGITHEQUE_UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "data/uploads"
	}
	files, err := filestore.NewLocal(uploadDir)
	if err != nil {
		log.Fatalf("init upload dir: %v", err)
	}

	recorder := audit.NewRecorder(auditStore)

	api := httpapi.New(httpapi.Config{
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
		Auth:       identity.NewService(credStore),
		Sectors:    portal.NewSectorService(sectorStore),
		Levels:     portal.NewLegalLevelService(levelStore),
		Menu:       portal.NewMenuService(menuStore),
		Documents:  portal.NewDocumentService(docStore, files, recorder),
		Users:      portal.NewUserService(userStore, recorder),
	})

	handler := httpapi.RequestID(
		httpapi.Logging(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(api.Handler(), portal.MaxDocumentSize+(4<<20)),
						50, 25)))))

	addr := os.Getenv("LEGITHEQUE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting legitheque-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
