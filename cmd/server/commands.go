package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/adherence/internal/config"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/report"
	"github.com/rpggio/adherence/internal/sqlite"
)

func runStatus(cfg config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	userID := fs.String("user", "default", "user to report on")
	noColor := fs.Bool("no-color", false, "disable colors")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	view, err := buildView(ctx, db, cfg.Queue, *userID, now)
	if err != nil {
		return err
	}

	plain := *noColor
	if f, ok := w.(*os.File); !ok || !report.IsTerminal(f) {
		plain = true
	}
	return report.Write(w, view, report.Options{NoColor: plain})
}

func buildView(ctx context.Context, db *sqlite.DB, limits syncqueue.Limits, userID string, now time.Time) (report.View, error) {
	queue := syncqueue.NewService(sqlite.NewQueueRepository(db), limits, nil)
	status, err := queue.Status(ctx, userID)
	if err != nil {
		return report.View{}, err
	}

	caches := sqlite.NewCacheRepository(db)
	pets, err := caches.Pets(ctx, userID)
	if err != nil {
		return report.View{}, err
	}

	view := report.View{
		UserID:      userID,
		GeneratedAt: now,
		Limits:      limits,
		Queue:       status,
	}
	for _, petID := range pets {
		summary, ok, err := caches.Load(ctx, dailycache.Key{UserID: userID, PetID: petID}, now)
		if err != nil {
			return report.View{}, err
		}
		if !ok {
			continue
		}
		view.Pets = append(view.Pets, report.PetDay{PetID: petID, Summary: summary})
	}
	return view, nil
}

func runAPIKey(cfg config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("apikey", flag.ContinueOnError)
	userID := fs.String("user", "", "user the token authenticates as")
	token := fs.String("token", "", "token to register; generated when empty")
	description := fs.String("description", "", "note stored with the key")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}
	if *token == "" {
		*token = uuid.NewString()
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewAPIKeyRepository(db).Create(context.Background(), *userID, *token, *description); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, *token)
	return err
}
