package main

import (
	"fmt"
	"strconv"
	"strings"

	"dragonsea/internal/app"
	"dragonsea/internal/domain"

	"github.com/pterm/pterm"
)

// getTurnPanel renders the cards revealed on a turn.
func getTurnPanel(result app.TurnResult) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var b strings.Builder
	if len(result.Drawn) == 0 {
		b.WriteString(pterm.Gray("no cards revealed"))
	}
	for _, pc := range result.Drawn {
		b.WriteString(pterm.Sprintfln("%s  %s", pterm.Cyan(pc.DeckKey), cardName(pc.Card)))
	}
	for _, pc := range result.Redrawn {
		b.WriteString(pterm.Sprintfln("%s  %s %s", pterm.Cyan(pc.DeckKey), cardName(pc.Card), pterm.Gray("(redrawn)")))
	}
	title := pterm.LightYellow("|TURN " + strconv.Itoa(result.Turn) + "|")
	return pterm.Panel{Data: pbox.WithTitle(title).WithTitleTopCenter().Sprint(strings.TrimRight(b.String(), "\n"))}
}

// getPilesPanel renders draw and discard pile sizes per deck.
func getPilesPanel(piles []domain.PileSize) (pterm.Panel, error) {
	data := pterm.TableData{{"Deck", "Type", "Draw", "Discard"}}
	for _, p := range piles {
		data = append(data, []string{p.Deck.Name, string(p.Deck.Type), strconv.Itoa(p.Draw), strconv.Itoa(p.Discard)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return pterm.Panel{}, err
	}
	return pterm.Panel{Data: table}, nil
}

func cardName(c domain.Card) string {
	switch c.Kind {
	case domain.KindPlain:
		return c.Name
	case domain.KindThereBeDragons, domain.KindMistyMountainsCold:
		return pterm.LightRed(c.Name)
	default:
		return pterm.LightMagenta(c.Name)
	}
}

// describe turns an event into one line of simulator output. Events that
// the turn panel already shows return an empty string.
func describe(ev app.Event) string {
	switch p := ev.Payload.(type) {
	case app.SessionStartedPayload:
		names := make([]string, 0, len(p.Decks))
		for _, d := range p.Decks {
			names = append(names, d.Name)
		}
		return "session started with " + strings.Join(names, ", ")
	case app.TurnAdvancedPayload:
		if len(p.Phases) == 0 {
			return ""
		}
		return strings.Join(p.Phases, " | ")
	case app.SpecialCardMissingPayload:
		return fmt.Sprintf("deck %s has no %q for the opening turn", p.DeckKey, p.Card)
	case app.DeckExhaustedPayload:
		return fmt.Sprintf("deck %s is exhausted", p.DeckKey)
	case app.KeepInPlayPayload:
		return fmt.Sprintf("%s: cards stay in play at the end of the turn", p.Card.Card.Name)
	case app.EndAfterTurnPayload:
		return fmt.Sprintf("%s: the game ends after this turn", p.Card.Card.Name)
	case app.BlackSwanPayload:
		return fmt.Sprintf("Black Swan in %s: %d card(s) redrawn", p.DeckKey, len(p.Redrawn))
	case app.DecisionOfferedPayload:
		return fmt.Sprintf("offered %s on %s for %s", p.Kind, p.Card.Name, p.DeckKey)
	case app.DecisionResolvedPayload:
		if p.Replacement != nil {
			return fmt.Sprintf("%s %s on %s: %s, replaced by %s", p.Choice, p.Kind, p.Card.Name, p.Outcome, p.Replacement.Name)
		}
		return fmt.Sprintf("%s %s on %s: %s", p.Choice, p.Kind, p.Card.Name, p.Outcome)
	case app.DecisionClosedPayload:
		return fmt.Sprintf("decision on %s closed at the end of turn %d", p.Card.Name, p.Turn)
	case app.GameOverPayload:
		return fmt.Sprintf("game over after turn %d", p.Turn)
	case app.SessionEndedPayload:
		return fmt.Sprintf("session ended at turn %d", p.Turn)
	}
	return ""
}
