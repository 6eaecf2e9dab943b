package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/auth"
	"github.com/stemsi/exstem-candidate/internal/config"
	"github.com/stemsi/exstem-candidate/internal/database"
	"github.com/stemsi/exstem-candidate/internal/device"
	"github.com/stemsi/exstem-candidate/internal/examapi"
	"github.com/stemsi/exstem-candidate/internal/handler"
	"github.com/stemsi/exstem-candidate/internal/logger"
	"github.com/stemsi/exstem-candidate/internal/metrics"
	"github.com/stemsi/exstem-candidate/internal/model"
	"github.com/stemsi/exstem-candidate/internal/proctor"
	"github.com/stemsi/exstem-candidate/internal/router"
	"github.com/stemsi/exstem-candidate/internal/session"
	"github.com/stemsi/exstem-candidate/internal/submission"
	"github.com/stemsi/exstem-candidate/internal/validator"
	"github.com/stemsi/exstem-candidate/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.AgentPort).
		Str("exam_base_url", cfg.ExamBaseURL).
		Str("exam_type", cfg.ExamType).
		Int("duration_min", cfg.ExamDurationMinutes).
		Msg("Starting ExStem candidate agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	examType, err := model.ParseExamType(cfg.ExamType)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid EXAM_TYPE")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Credentials & Audit Store ─────────────────────────────────────
	// Redis holds the token written by the login screen. Without it the
	// agent runs on CANDIDATE_TOKEN and keeps the capture audit in memory.
	var tokens auth.TokenSource = auth.StaticTokenSource(cfg.CandidateToken)
	var audit proctor.Audit = proctor.NewMemoryAudit()

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		store := auth.NewRedisTokenStore(rdb)
		if cfg.CandidateToken == "" {
			tokens = store
		}
		audit = proctor.NewRedisAudit(rdb, examType)

		name, err := store.CandidateName(ctx)
		switch {
		case err != nil:
			log.Debug().Err(err).Msg("Candidate name unavailable")
		case name != "":
			log.Info().Str("candidate", name).Msg("Candidate identified")
		}
	}

	// ─── Exam Server Client & Metrics ──────────────────────────────────
	api := examapi.New(cfg.ExamBaseURL, tokens, cfg.HTTPTimeout, log)
	m := metrics.New()

	// ─── Proctoring ────────────────────────────────────────────────────
	var (
		scheduler    *proctor.Scheduler
		camera       handler.ProctorCamera
		releaser     submission.CameraReleaser
		proctorStart session.Proctor
	)
	if cfg.PhotosRequired || cfg.VideoRequired {
		scheduler = proctor.NewScheduler(proctor.Options{
			ExamType: examType,
			Photos:   cfg.PhotosRequired,
			Video:    cfg.VideoRequired,
			Policy: proctor.PolicyFromDurations(
				cfg.PhotoEarlyInterval,
				cfg.PhotoEarlyWindow,
				cfg.PhotoLateInterval,
				cfg.VideoInterval,
				cfg.VideoClipLength,
			),
			ModeSwitchTimeout:  cfg.ModeSwitchTimeout,
			CameraReadyTimeout: cfg.CameraReadyTimeout,
		}, proctor.Deps{
			Camera: device.NewSpoolCamera(cfg.SpoolDir, log),
			OpenCamera: func() (device.Camera, error) {
				return device.NewSpoolCamera(cfg.SpoolDir, log), nil
			},
			Permissions: device.GrantAll(),
			Locator: device.StaticLocator{
				Lat:   cfg.LocationLat,
				Lon:   cfg.LocationLon,
				Label: cfg.LocationLabel,
			},
			Uploader: api,
			Audit:    audit,
			Metrics:  m,
		}, log)
		camera, releaser, proctorStart = scheduler, scheduler, scheduler
	}

	// ─── Answer Sync ───────────────────────────────────────────────────
	var (
		autosave *worker.AutosaveWorker
		syncer   session.AnswerSyncer
		activity session.ActivityReporter
		queue    handler.QueueDepth
	)
	if cfg.SyncWSURL != "" {
		autosave = worker.NewAutosaveWorker(cfg.SyncWSURL, examType, tokens, m, log)
		syncer, activity, queue = autosave, autosave, autosave
	}

	// ─── Exam Session ──────────────────────────────────────────────────
	coordinator := submission.New(examType, api, releaser, log)
	sess := session.New(session.Params{
		ExamType:                    examType,
		DurationSeconds:             cfg.DurationSeconds(),
		PhotosRequired:              cfg.PhotosRequired,
		VideoRequired:               cfg.VideoRequired,
		SuspiciousActivityDetection: cfg.SuspiciousActivityDetection,
		LogoURL:                     cfg.LogoURL,
	}, session.Deps{
		Content:   api,
		Submitter: coordinator,
		Proctor:   proctorStart,
		Syncer:    syncer,
		Activity:  activity,
		Metrics:   m,
		OnCompleted: func() {
			log.Info().Msg("Exam completed, handing over to feedback screen")
		},
	}, log)

	// ─── Setup Router ──────────────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(sess, log),
		Proctor: handler.NewProctorHandler(audit, camera, log),
		System:  handler.NewSystemHandler(sess, queue, log),
		Metrics: m.Handler(),
	}
	r := router.SetupRouter(handlers, cfg, log)

	srv := &http.Server{
		Addr:              "127.0.0.1:" + cfg.AgentPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run ───────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Control API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if autosave != nil {
		g.Go(func() error {
			autosave.Start(workerCtx)
			return nil
		})
	}

	g.Go(func() error {
		// A failed load leaves the session in FAILED for the UI to report.
		if err := sess.Load(gctx); err != nil {
			log.Error().Err(err).Msg("Failed to load exam")
		}
		return nil
	})

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		// 1. Stop accepting new HTTP requests (5s timeout).
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		// 2. Let an in-flight submission finish.
		submitCtx, submitCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer submitCancel()
		if err := sess.WaitSubmission(submitCtx); err != nil {
			log.Warn().Err(err).Msg("Submission still running at shutdown")
		}

		// 3. Release the camera and stop the clock.
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Camera release error")
			}
		}
		sess.Close()

		// 4. Stop the sync worker; it drains what is queued.
		workerCancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Agent stopped with error")
	}
	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
