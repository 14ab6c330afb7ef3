package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-dicom-connector/internal/ae"
	"github.com/otcheredev/ris-dicom-connector/internal/cache"
	"github.com/otcheredev/ris-dicom-connector/internal/config"
	"github.com/otcheredev/ris-dicom-connector/internal/database"
	"github.com/otcheredev/ris-dicom-connector/internal/handlers"
	"github.com/otcheredev/ris-dicom-connector/internal/middleware"
	"github.com/otcheredev/ris-dicom-connector/internal/models"
	"github.com/otcheredev/ris-dicom-connector/internal/repository"
	"github.com/otcheredev/ris-dicom-connector/internal/services"
	"github.com/otcheredev/ris-dicom-connector/pkg/dimse"
	"github.com/otcheredev/ris-dicom-connector/pkg/logger"
)

// storageSOPClasses are the abstract syntaxes this AE accepts C-STORE
// for as SCP; kept short and explicit rather than accepting every SOP
// class registered in the standard, matching how a single-purpose RIS
// connector is configured in practice.
var storageSOPClasses = []string{
	"1.2.840.10008.5.1.4.1.1.7",    // Secondary Capture
	"1.2.840.10008.5.1.4.1.1.1",    // CR Image Storage
	"1.2.840.10008.5.1.4.1.1.1.1",  // Digital X-Ray Image Storage
	"1.2.840.10008.5.1.4.1.1.2",    // CT Image Storage
	"1.2.840.10008.5.1.4.1.1.4",    // MR Image Storage
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting DICOM association engine")

	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}
	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	var cacheImpl cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Type == "redis" {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}

	remoteAERepo := repository.NewRemoteAERepository()
	auditRepo := repository.NewAuditRepository()
	queryCache := services.NewQueryCacheService(cacheImpl, 5*time.Minute)

	registry := dimse.NewServiceClassRegistry()
	registry.Register(dimse.VerificationSOPClass, ae.VerificationHandler{})
	for _, sopClass := range storageSOPClasses {
		registry.Register(sopClass, ae.StorageHandler{})
	}
	for _, sopClass := range []string{
		dimse.PatientRootFindSOPClass, dimse.StudyRootFindSOPClass,
		dimse.PatientStudyOnlyFindSOPClass, dimse.ModalityWorklistFindSOPClass,
	} {
		registry.Register(sopClass, ae.QueryRetrieveHandler{Cache: queryCache})
	}

	scpContexts := []dimse.PresentationContext{
		{ID: 1, AbstractSyntax: dimse.VerificationSOPClass, TransferSyntaxes: dimse.DefaultTransferSyntaxes},
	}
	pcID := byte(3)
	for _, sopClass := range storageSOPClasses {
		scpContexts = append(scpContexts, dimse.PresentationContext{ID: pcID, AbstractSyntax: sopClass, TransferSyntaxes: dimse.DefaultTransferSyntaxes})
		pcID += 2
	}
	for _, sopClass := range []string{dimse.PatientRootFindSOPClass, dimse.StudyRootFindSOPClass} {
		scpContexts = append(scpContexts, dimse.PresentationContext{ID: pcID, AbstractSyntax: sopClass, TransferSyntaxes: dimse.DefaultTransferSyntaxes})
		pcID += 2
	}

	scuContexts := []dimse.PresentationContext{
		{ID: 1, AbstractSyntax: dimse.VerificationSOPClass, TransferSyntaxes: dimse.DefaultTransferSyntaxes, RoleSCU: true},
		{ID: 3, AbstractSyntax: dimse.StudyRootFindSOPClass, TransferSyntaxes: dimse.DefaultTransferSyntaxes, RoleSCU: true},
		{ID: 5, AbstractSyntax: dimse.StudyRootMoveSOPClass, TransferSyntaxes: dimse.DefaultTransferSyntaxes, RoleSCU: true},
		{ID: 7, AbstractSyntax: dimse.StudyRootGetSOPClass, TransferSyntaxes: dimse.DefaultTransferSyntaxes, RoleSCU: true, RoleSCP: true},
	}

	aeConfig := ae.Config{
		Title:                   cfg.AE.Title,
		ListenAddr:              fmt.Sprintf("%s:%d", cfg.AE.ListenHost, cfg.AE.ListenPort),
		MaxPDULength:            cfg.AE.MaxPDULength,
		MaxAssociations:         cfg.AE.MaxAssociations,
		ACSETimeout:             cfg.AE.ACSETimeout,
		DIMSETimeout:            cfg.AE.DIMSETimeout,
		IdleTimeout:             cfg.AE.IdleTimeout,
		RequiredCallingAET:      cfg.AE.RequiredCallingAET,
		RequiredCalledAET:       cfg.AE.RequiredCalledAET,
		ImplementationClassUID:  cfg.AE.ImplementationClassUID,
		ImplementationVersion:   cfg.AE.ImplementationVersion,
		SCPPresentationContexts: scpContexts,
		SCUPresentationContexts: scuContexts,
	}

	localAE := ae.New(aeConfig, registry, nil, ae.Callbacks{
		OnAccepted: func(params dimse.AssociationParameters) {
			logAssociationEvent(auditRepo, "accepted", "acceptor", params.CallingAETitle, "", "", 0)
		},
		OnRejected: func(params dimse.AssociationParameters, reject dimse.RejectParams) {
			logAssociationEvent(auditRepo, "rejected", "acceptor", params.CallingAETitle, fmt.Sprintf("result=%d source=%d diag=%d", reject.Result, reject.Source, reject.Diagnostic), "", 0)
		},
		OnReleased: func() {
			logAssociationEvent(auditRepo, "released", "acceptor", "", "", "", 0)
		},
		OnAborted: func(primitive *dimse.AbortPrimitive) {
			logAssociationEvent(auditRepo, "aborted", "acceptor", "", "", "", 0)
		},
	})

	aeCtx, cancelAE := context.WithCancel(context.Background())
	go func() {
		if err := localAE.ListenAndServe(aeCtx); err != nil {
			log.Error().Err(err).Msg("association engine listener stopped")
		}
	}()
	log.Info().Str("addr", aeConfig.ListenAddr).Str("ae_title", aeConfig.Title).Msg("association engine listening")

	remoteAEHandler := handlers.NewRemoteAEHandler(remoteAERepo, localAE)
	healthHandler := handlers.NewHealthHandler(localAE)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1/remote-aes", func(r chi.Router) {
		r.Post("/", remoteAEHandler.Create)
		r.Get("/", remoteAEHandler.List)
		r.Get("/{id}", remoteAEHandler.Get)
		r.Delete("/{id}", remoteAEHandler.Delete)
		r.Post("/{id}/test", remoteAEHandler.TestConnection)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("admin HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin HTTP server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	cancelAE()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("admin HTTP server forced to shutdown")
	}

	log.Info().Msg("Shutdown complete")
}

func logAssociationEvent(repo *repository.AuditRepository, action, role, peerAETitle, rejectReason, errMsg string, durationMillis int64) {
	entry := &models.AssociationAuditLog{
		Action:       action,
		Role:         role,
		PeerAETitle:  peerAETitle,
		RejectReason: rejectReason,
		ErrorMessage: errMsg,
		DurationMillis: durationMillis,
	}
	if err := repo.Create(context.Background(), entry); err != nil {
		log.Error().Err(err).Msg("failed to persist association audit log")
	}
}
