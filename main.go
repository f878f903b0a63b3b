package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CareerBot/api"
	"CareerBot/config"
	"CareerBot/handler"
	"CareerBot/questionnaire"
	"CareerBot/repo"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	cfg.Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var store repo.FirestoreConnector
	apiOpts := []api.Option{}
	if cfg.UseFirebase() {
		fc, err := repo.InitializeFirebase(ctx, cfg.FirebaseKeyPath, cfg.FirebaseProject, cfg.StorageBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("error initializing Firebase")
		}
		defer fc.Close()
		store = fc
		apiOpts = append(apiOpts, api.WithAuth(fc))
	} else {
		log.Warn().Msg("no Firebase credentials, using the in-memory store")
		store = repo.NewMemoryStore()
	}

	gen, err := repo.NewGenerator(ctx, cfg.GenAIProvider, cfg.GeminiKey, cfg.OpenAIKey, cfg.GenAIModel)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating generator")
	}

	handoff, err := repo.NewHandoffStore(cfg.HandoffDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("error opening hand-off store")
	}
	defer handoff.Close()

	opts := []handler.Option{
		handler.WithImages(repo.NewImageService(cfg.TelegramToken)),
		handler.WithHandoff(handoff),
		handler.WithRunner(questionnaire.NewRunner(cfg.TaskTimeout)),
	}
	if cfg.CashfreeAppID != "" && cfg.PublicBaseURL != "" {
		cashfree := repo.NewCashfree(cfg.CashfreeAppID, cfg.CashfreeSecret, cfg.CashfreeProduction, cfg.PublicBaseURL+api.ReturnPath)
		opts = append(opts, handler.WithPayments(cashfree, cfg.PublicBaseURL))
		apiOpts = append(apiOpts, api.WithPayments(cashfree))
	}
	if mailer := repo.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom); mailer.Enabled() {
		opts = append(opts, handler.WithMailer(mailer, cfg.CounsellorMail))
		apiOpts = append(apiOpts, api.WithMailer(mailer))
	}

	h := handler.NewCareerBotHandler(store, repo.NewAdvisor(gen), opts...)

	b, err := bot.New(cfg.TelegramToken, bot.WithDefaultHandler(h.Handler))
	if err != nil {
		log.Fatal().Err(err).Msg("error creating bot")
	}

	server := api.NewServer(store, apiOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.APIAddr)
	})

	log.Info().Msg("CareerBot started")
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutting down")
	}
	h.Wait()
	log.Info().Msg("Bot stopped")
}
