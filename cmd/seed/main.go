// Command seed publishes the sample catalogue through the product event
// contract, optionally writing the stock rows and an order for it too.
package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/ariefcatur/go-catalog-sync/internal/config"
	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/ariefcatur/go-catalog-sync/internal/inventory"
	kafkax "github.com/ariefcatur/go-catalog-sync/internal/kafka"
	"github.com/ariefcatur/go-catalog-sync/internal/obs"
	"github.com/ariefcatur/go-catalog-sync/internal/postgres"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"log/slog"
	"os"
	"time"
)

// catalogue ids are stable so repeated runs update instead of duplicating.
func catalogue(now time.Time) []events.SearchProduct {
	mk := func(name, desc, price string, stock int64, i int) events.SearchProduct {
		return events.SearchProduct{
			ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte("catalog-sync/"+name)).String(),
			Name:        name,
			Description: desc,
			Price:       decimal.RequireFromString(price),
			Stock:       stock,
			Category:    "Electronics",
			Images:      []string{},
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		}
	}
	return []events.SearchProduct{
		mk("Laptop", "High-performance laptop", "999.99", 10, 0),
		mk("Smartphone", "Latest smartphone model", "699.99", 25, 1),
		mk("Headphones", "Noise-cancelling headphones", "199.99", 50, 2),
	}
}

func main() {
	withDB := flag.Bool("db", false, "also upsert stock rows into postgres")
	withOrder := flag.Bool("order", false, "also publish ORDER_CREATED for one of each product")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := obs.NewLogger(cfg.Logging, cfg.ServiceName+"-seed")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	products := catalogue(time.Now().UTC().Truncate(time.Second))

	if *withDB {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			fatal(log, "db connect", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			fatal(log, "db migrate", err)
		}
		repo := &inventory.StockRepo{DB: db}
		for _, p := range products {
			if err := repo.Upsert(ctx, inventory.Product{ID: p.ID, Name: p.Name, Stock: p.Stock}); err != nil {
				fatal(log, "seed stock", err)
			}
		}
		db.Close()
	}

	broker := kafkax.NewClient(kafkax.OptionsFrom(cfg), log)
	if err := broker.Connect(ctx); err != nil {
		fatal(log, "broker connect", err)
	}
	for _, q := range []string{events.QueueSearchIndex, events.QueueOrderRefSync, events.QueueOrderEvents} {
		if err := broker.EnsureQueue(ctx, q); err != nil {
			fatal(log, "declare queue", err)
		}
	}
	prod := kafkax.NewProducer(broker, cfg.Broker.PublishBuffer)
	prod.Start(ctx)

	pp := events.ProductPublisher{Out: prod}
	for _, p := range products {
		pp.Created(p)
		log.Info("product published", "id", p.ID, "name", p.Name)
	}
	if *withOrder {
		o := events.OrderPayload{OrderID: uuid.NewString()}
		for _, p := range products {
			o.Items = append(o.Items, events.OrderItem{ProductID: p.ID, Quantity: 1})
		}
		events.OrderPublisher{Out: prod}.Created(o)
		log.Info("order published", "order_id", o.OrderID)
	}

	prod.Close()
	prod.WaitClosed()
	_ = broker.Close()
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
