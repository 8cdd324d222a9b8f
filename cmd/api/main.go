// server/cmd/api/main.go
package main

import (
	"context"

	"github.com/freightbid/bidding-api/config"
	"github.com/freightbid/bidding-api/internal/api/routes"
	"github.com/freightbid/bidding-api/internal/auction"
	"github.com/freightbid/bidding-api/internal/models"
	"github.com/freightbid/bidding-api/internal/notify"
	"github.com/freightbid/bidding-api/internal/ranking"
	"github.com/freightbid/bidding-api/internal/scheduler"
	"github.com/freightbid/bidding-api/internal/socket"
	"github.com/freightbid/bidding-api/internal/store"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional, real deployments inject the environment.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.WithError(err).Fatal("could not load config")
	}

	ctx := context.Background()
	db, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.WithError(err).Fatal("could not connect to MongoDB")
	}

	loads := store.NewMongoLoadStore(db)
	events := store.NewMongoBidEventStore(db)
	assignments := store.NewMongoAssignmentStore(db)
	parties := store.NewMongoPartyStore(db)

	board := ranking.NewStore()
	hub := socket.NewHub(log)
	sink := notify.NewSink(cfg.Notifier.BaseURL, cfg.Notifier.Timeout(), log)

	bids := auction.NewBidService(loads, events, parties, board, hub, sink, log)
	lifecycle := auction.NewLifecycleService(loads, assignments, parties, board, hub, sink, cfg.Auction.PendingGrace(), log)
	negotiation := auction.NewNegotiationService(loads, events, assignments, parties, lifecycle, sink, cfg.Auction.PriceMatchMinutes, log)

	// The leaderboard is in-process state; rebuild it for auctions that
	// were live when the process last stopped.
	live, err := loads.ListActiveByStatus(ctx, models.StatusLive)
	if err != nil {
		log.WithError(err).Fatal("could not list live loads")
	}
	for i := range live {
		if err := bids.RebuildBoard(ctx, live[i].LoadID); err != nil {
			log.WithError(err).WithField("loadID", live[i].LoadID).Error("board rebuild failed")
		}
	}

	sched := scheduler.New(lifecycle, cfg.Auction.OpenCloseInterval(), cfg.Auction.StaleSweepInterval(), log)
	sched.Start(ctx)
	defer sched.Stop()

	router := routes.SetupRouter(cfg, bids, lifecycle, negotiation, assignments, hub, log)

	log.WithField("port", cfg.Server.Port).Info("starting API server")
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
