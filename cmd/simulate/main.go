// Command simulate plays a Dragon Sea session in the terminal against a
// local SQLite catalog, without a Nakama server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"dragonsea/internal/app"
	"dragonsea/internal/catalog"
	"dragonsea/internal/config"
	"dragonsea/internal/domain"
	"dragonsea/internal/storage/sqlite"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

const observer = "simulator"

func main() {
	if err := run(os.Args[1:]); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// run plays one session. Every exit path returns through here so the store
// is closed before main exits.
func run(args []string) error {
	cfg, err := config.FromOS()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	deckDir := fs.String("decks", cfg.DeckDir, "directory of YAML deck files used to seed an empty catalog")
	dbPath := fs.String("db", cfg.SQLitePath, "SQLite database holding decks and sessions")
	turns := fs.Int("turns", 20, "maximum number of turns to play")
	seed := fs.Int64("seed", 0, "random seed, 0 picks one from the clock")
	export := fs.String("export", "", "write the final session snapshot to this YAML file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", *dbPath, err)
	}
	defer store.Close()

	ctx := context.Background()
	sim, err := newSimulation(ctx, logger, store, *deckDir, *seed)
	if err != nil {
		return fmt.Errorf("prepare simulation: %w", err)
	}
	if err := sim.run(ctx, *turns); err != nil {
		return fmt.Errorf("session %s: %w", sim.key, err)
	}
	if *export != "" {
		if err := sim.exportSnapshot(*export); err != nil {
			return fmt.Errorf("export snapshot to %s: %w", *export, err)
		}
		pterm.Success.Printfln("snapshot written to %s", *export)
	}
	return nil
}

type simulation struct {
	logger *slog.Logger
	store  *sqlite.Store
	svc    *app.Service
	cat    *catalog.Catalog
	rng    *rand.Rand
	key    string
	final  domain.Snapshot
}

func newSimulation(ctx context.Context, logger *slog.Logger, store *sqlite.Store, deckDir string, seed int64) (*simulation, error) {
	cat := catalog.New(store)
	if err := cat.Load(ctx); err != nil {
		return nil, err
	}
	if cat.Len() == 0 {
		decks, err := catalog.LoadDir(deckDir)
		if err != nil {
			return nil, err
		}
		added, err := cat.Seed(ctx, decks)
		if err != nil {
			return nil, err
		}
		pterm.Info.Printfln("seeded %d decks from %s", added, deckDir)
	}
	logger.Debug("catalog ready", "decks", cat.Len(), "seed", seed)

	return &simulation{
		logger: logger,
		store:  store,
		svc:    app.NewService(cat, rand.New(rand.NewSource(seed)), app.WithPhaseMessages(true)),
		cat:    cat,
		rng:    rand.New(rand.NewSource(seed + 1)),
		key:    uuid.NewString(),
	}, nil
}

// run starts the session and advances it until the game ends or maxTurns
// turns have been played.
func (s *simulation) run(ctx context.Context, maxTurns int) error {
	keys, err := s.cat.DefaultSet()
	if err != nil {
		return err
	}
	result, events, err := s.svc.CreateSession(ctx, s.key, keys)
	if err != nil {
		return err
	}
	pterm.DefaultHeader.WithFullWidth().Printfln("Dragon Sea session %s", s.key)

	for {
		events = append(events, s.meddle(ctx, result)...)
		if err := s.show(result, events); err != nil {
			return err
		}
		if err := s.save(ctx); err != nil {
			return err
		}
		if result.Turn >= maxTurns {
			pterm.Warning.Printfln("turn limit %d reached", maxTurns)
			ended, err := s.svc.EndSession(ctx, s.key)
			if err != nil {
				return err
			}
			s.print(ended)
			return nil
		}

		result, events, err = s.svc.AdvanceTurn(ctx, s.key)
		if errors.Is(err, domain.ErrGameAlreadyOver) {
			s.print(events)
			pterm.Success.Printfln("game over after %d turns", result.Turn)
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// meddle peeks at a random deck in play, asks for a random decision on its
// top card and answers it at random.
func (s *simulation) meddle(ctx context.Context, result app.TurnResult) []app.Event {
	if len(result.Piles) == 0 || s.rng.Intn(2) == 0 {
		return nil
	}
	deck := result.Piles[s.rng.Intn(len(result.Piles))].Deck.Key
	kind := domain.DecisionMoveToBottom
	if s.rng.Intn(2) == 0 {
		kind = domain.DecisionDestroyAndReplace
	}
	offer, events, err := s.svc.OfferDecision(ctx, s.key, deck, kind, observer)
	if err != nil {
		s.logger.Debug("no decision offered", "deck", deck, "error", err)
		return nil
	}
	if offer.Informational {
		pterm.Info.Printfln("peeked %s on %s", offer.Card.Name, deck)
		return events
	}

	choice := domain.ChoiceNo
	if s.rng.Intn(3) > 0 {
		choice = domain.ChoiceYes
	}
	_, resolved, err := s.svc.ResolveDecision(ctx, offer.Handle, choice)
	if err != nil && !errors.Is(err, domain.ErrDecisionStale) {
		s.logger.Warn("resolve decision", "handle", offer.Handle.ID, "error", err)
	}
	return append(events, resolved...)
}

func (s *simulation) show(result app.TurnResult, events []app.Event) error {
	piles, err := getPilesPanel(result.Piles)
	if err != nil {
		return err
	}
	if err := pterm.DefaultPanel.WithPanels(pterm.Panels{{getTurnPanel(result), piles}}).Render(); err != nil {
		return err
	}
	s.print(events)
	return nil
}

func (s *simulation) print(events []app.Event) {
	for _, ev := range events {
		if line := describe(ev); line != "" {
			pterm.Println("  " + line)
		}
	}
}

func (s *simulation) save(ctx context.Context) error {
	snap, err := s.svc.Snapshot(s.key)
	if err != nil {
		return err
	}
	s.final = snap
	return s.store.SaveSession(ctx, s.key, snap)
}

func (s *simulation) exportSnapshot(path string) error {
	data, err := yaml.Marshal(s.final)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
